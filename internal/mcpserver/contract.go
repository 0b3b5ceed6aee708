package mcpserver

// LinkRulesURI identifies the link insertion rules resource.
const LinkRulesURI = "vaultlinker://link-rules"

// LinkRules describes how suggested links are written into notes, so LLM
// consumers know what insert_links and link_note will and will not touch.
const LinkRules = `# Link Insertion Rules

Suggested links are written as wikilinks into the note body.

## Syntax

- ` + "`" + `[[Target]]` + "`" + ` when the matched text equals the target.
- ` + "`" + `[[Target|matched text]]` + "`" + ` when the casing or wording differs.
- ` + "`" + `[[Target|display]]` + "`" + ` when display text is enabled and the suggestion carries one.

## Matching

1. Matching is case-insensitive and whole-word only.
2. By default only the first occurrence of each target is linked.
   With ` + "`" + `first_match_only=false` + "`" + ` up to ` + "`" + `max_links_per_target` + "`" + ` occurrences are linked.
3. When two suggestions claim overlapping text, the higher confidence wins.

## Never modified

- YAML frontmatter.
- Fenced code blocks and inline code.
- Existing wikilinks and Markdown links, and bare URLs.
- Lines that already link the same target.

Running the same insertion twice changes nothing the second time.
`
