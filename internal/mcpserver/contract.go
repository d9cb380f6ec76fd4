package mcpserver

// BlockFormatContract describes the canonical memory block format that
// LLM consumers should follow when storing or updating blocks.
const BlockFormatContract = `# Munin Memory Block Contract

Every memory block stored in Munin MUST follow this structure.

## Structure

` + "```" + `json
{
  "type": "task",                  // REQUIRED - a registered block type
  "text": "Primary content.",      // REQUIRED - the memory itself
  "tags": ["planning", "q3"],      // OPTIONAL - used for tag queries
  "metadata": {                    // OPTIONAL - shape depends on "type"
    "title": "Ship the importer",
    "status": "in_progress"
  },
  "links": [                       // OPTIONAL - outgoing edges only
    {"to_id": "<block id>", "relation": "depends_on"}
  ]
}
` + "```" + `

## Rules

1. **The type decides the metadata shape.** Builtin types: knowledge, task,
   project, doc, log. A block whose metadata does not validate against the
   type's registered schema is rejected before anything is stored.
2. **Links are directed.** Valid relations: related_to, subtask_of,
   depends_on, child_of, mentions. The target block does not have to exist
   yet; dangling links are allowed.
3. **Ids are assigned for you** when omitted. Pass an id only to address an
   existing block.
4. **Updates replace fields wholesale.** Sending "tags" replaces the whole
   tag list, not individual entries.
5. **Semantic recall is eventually consistent.** A block stored a moment ago
   may take a beat to appear in recall results; read_block by id is always
   current.
`
