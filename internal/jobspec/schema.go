package jobspec

// requestSchema is applied to every decoded request before it is mapped onto
// Go types, so shape errors name the offending JSON path.
const requestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["owner_id", "document"],
  "properties": {
    "owner_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "document": {"type": "string", "minLength": 1},
    "extraction_model": {"type": "string"},
    "filter_tables": {"type": "boolean"},
    "combine_output": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "pages"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "pages": {"type": "string", "pattern": "^[0-9 ,-]+$"},
          "mode": {"type": "string"},
          "model": {"type": "string"},
          "columns_to_remove": {"type": "array", "items": {"type": "string"}},
          "rows_to_remove": {"type": "array", "items": {"type": "string"}},
          "combine": {"type": "boolean"},
          "grid_lines_removal": {"type": "boolean"}
        }
      }
    }
  }
}`
