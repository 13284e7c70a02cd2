package mcpserver

// ContactSchema describes the contact record that tool callers read and
// write.
const ContactSchema = `# Contact Record Format

Every contact is a JSON object with these fields.

| Field        | Type    | Notes |
|--------------|---------|-------|
| ` + "`id`" + `         | string  | Generated on create, never changes. |
| ` + "`first`" + `      | string  | Optional. |
| ` + "`last`" + `       | string  | Optional. |
| ` + "`avatar`" + `     | string  | Optional image URL. Use set_avatar to upload one. |
| ` + "`twitter`" + `    | string  | Optional handle, e.g. ` + "`@ada`" + `. |
| ` + "`notes`" + `      | string  | Optional free text. |
| ` + "`favorite`" + `   | boolean | Defaults to false. |
| ` + "`created_at`" + ` | string  | RFC 3339 timestamp set on create. |

## Rules

1. **All name fields are optional.** A contact without names is valid and
   shown as "No Name".
2. **Absent is not empty.** An omitted field stays absent; passing an empty
   string stores an empty value.
3. **Updates merge.** update_contact changes only the fields you pass. ` + "`id`" + `
   and ` + "`created_at`" + ` cannot be changed.
4. **Listing order** is last name, then first name (case-insensitive), then
   creation time.
5. **Search** matches a case-insensitive substring of the first or last name.
   An empty query lists everything.

## Example

` + "```" + `json
{
  "id": "0f8fad5b-d9cb-469f-a165-70867728950e",
  "first": "Ada",
  "last": "Lovelace",
  "twitter": "@ada",
  "favorite": true,
  "created_at": "2025-01-20T09:30:00Z"
}
` + "```" + `
`
