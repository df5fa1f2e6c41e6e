package mcpserver

// NoteFormatContract describes the Markdown note format that LLM consumers
// should follow when creating or updating notes.
const NoteFormatContract = `# Ansuz Note Format

Notes are plain Markdown files. The server stores each note under ` + "`" + `notes/` + "`" + `
with a generated file name (` + "`" + `YYYY-MM-DD_HHMMSS_<name>.md` + "`" + `) unless a slug is given,
in which case the file is ` + "`" + `notes/<slug>.md` + "`" + `.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL - falls back to the first heading
tags:                               # OPTIONAL - YAML list or comma separated string
  - tag-one
  - tag-two
---

Body text in standard Markdown. Inline #tags are picked up as well.
` + "```" + `

## Rules

1. Frontmatter is optional. When present the ` + "`" + `---` + "`" + ` fence must be the first line.
2. The note name passed to ` + "`" + `create_note` + "`" + ` is its display name; it may contain spaces.
   It is reduced to letters, digits, dots, dashes and underscores for the file name.
3. Tags are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `).
4. Paths returned by the tools are relative to the data root and use forward slashes,
   e.g. ` + "`" + `notes/2026-01-20_093000_Standup.md` + "`" + `. Pass them back unchanged.
5. Encoding is UTF-8.

## Files

- Upload images and documents with the ` + "`" + `upload_file` + "`" + ` tool. It returns the stored
  path (` + "`" + `uploads/...` + "`" + `) and a ` + "`" + `markdown` + "`" + ` snippet ready to paste into a note.
- Markdown uploads become notes and appear in ` + "`" + `list_notes` + "`" + `.

## Sharing

` + "`" + `share_note` + "`" + ` returns a public link. With ` + "`" + `burn_after_reading` + "`" + ` the note is
deleted after the first successful read, so do not open the link yourself.

## Example

` + "```" + `markdown
---
title: Weekly standup 2026-01-20
tags: [meeting-notes, project-x]
---

# Weekly standup

![Whiteboard](/uploads/2026-01-20_093512_whiteboard.jpg)

- Alice reviews the design doc #review
` + "```" + `
`
