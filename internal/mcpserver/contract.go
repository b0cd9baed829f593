package mcpserver

// FrontmatterContract is the canonical header format for synchronized
// documents, exposed to MCP clients so generated files link up correctly.
const FrontmatterContract = `# Synchronized Document Format

Documents under the sync directory are plain Markdown files with an optional
YAML frontmatter header delimited by ` + "`---`" + ` lines.

## Recognized keys

- ` + "`title`" + `: page title. When absent, the first level-1 heading is
  used, then the filename stem.
- ` + "`wiki_page_id`" + `: links the file to an existing wiki page, bypassing
  title matching. Set automatically when a page is pulled.
- ` + "`wiki_space_key`" + `, ` + "`wiki_parent_id`" + `, ` + "`wiki_version`" + `,
  ` + "`last_modified`" + `, ` + "`last_modified_by`" + `, ` + "`labels`" + `:
  written when remote content is pulled; informational on push.

## Example

` + "```markdown" + `
---
title: Deployment Runbook
wiki_page_id: "184552"
wiki_space_key: OPS
---

# Deployment Runbook

Body in plain Markdown. Headings, emphasis, inline code, fenced code blocks,
links, nested lists, blockquotes, and tables survive the round trip.
` + "```" + `

A malformed header never fails a sync: the file is treated as having no
frontmatter and its full content becomes the body.
`
