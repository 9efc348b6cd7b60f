package mcpserver

// NoteFormatContract describes how murmur reads Markdown notes, so LLM
// clients know which parts of a note drive titles, tags and links.
const NoteFormatContract = `# murmur Note Format

murmur reads plain Markdown files (` + "`" + `.md` + "`" + `, UTF-8) from every registered
collection. Nothing is stored besides the files themselves.

## Structure

` + "```" + `markdown
---
tags: [meeting, project-x]      # OPTIONAL – flow list, block list or single value
created: 2025-01-15             # OPTIONAL – any scalar is kept as front-matter
---

# Weekly standup                 # first level-1 heading is the title

Body text with inline #tags and [[wikilinks]].
` + "```" + `

## Rules

1. **Front-matter** is only recognized when the very first line is ` + "`" + `---` + "`" + `
   and a later line is ` + "`" + `---` + "`" + `. Each line is ` + "`" + `key: value` + "`" + `; numbers,
   booleans and lists are typed, everything else is a string.
2. **Title** is the first line of the form ` + "`" + `# Title` + "`" + `. Without one, the file
   name is used with ` + "`" + `-` + "`" + ` and ` + "`" + `_` + "`" + ` turned into spaces.
3. **Tags** are the union of the front-matter ` + "`" + `tags` + "`" + ` field, inline
   ` + "`" + `#word` + "`" + ` tokens (letters, digits, ` + "`" + `_` + "`" + ` and ` + "`" + `-` + "`" + `, no space after ` + "`" + `#` + "`" + `),
   and ` + "`" + `[[link]]` + "`" + ` targets that contain neither ` + "`" + `.` + "`" + ` nor ` + "`" + `/` + "`" + `.
4. **Wikilinks** use double brackets. ` + "`" + `[[target|alias]]` + "`" + ` links to ` + "`" + `target` + "`" + `.
5. **Ignored directories**: ` + "`" + `.git` + "`" + `, ` + "`" + `.hg` + "`" + `, ` + "`" + `.svn` + "`" + `, ` + "`" + `.obsidian` + "`" + `,
   ` + "`" + `.trash` + "`" + ` and ` + "`" + `.murmur` + "`" + `.

## Imported recordings

Recordings land in the primary collection under the recordings directory as
` + "`" + `YYYY-MM-DD-<slug>-<id>.md` + "`" + ` with ` + "`" + `recording_id` + "`" + `, ` + "`" + `created` + "`" + `,
` + "`" + `duration` + "`" + ` (seconds), ` + "`" + `source: recording` + "`" + ` and ` + "`" + `tags` + "`" + ` in front-matter,
followed by the title, a summary section and the transcript.

## Topic index

The primary collection holds a generated ` + "`" + `Topic Index.md` + "`" + ` (front-matter
` + "`" + `generated: true` + "`" + `). It is rewritten by murmur; do not edit it by hand.
`
