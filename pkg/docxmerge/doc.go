// Package docxmerge merges Word (DOCX) templates with JSON data.
//
// Templates embed single-brace directives inside the visible text of
// paragraphs, table rows and table cells. Rendering replaces directives with
// computed text, duplicates or conditionally keeps the enclosed blocks, or
// inserts inline images.
//
// Basic Usage:
//
//	templateBytes, err := os.ReadFile("template.docx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	output, err := docxmerge.Render(templateBytes, `{"patient":{"name":"Alice"}}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := os.WriteFile("output.docx", output, 0o644); err != nil {
//	    log.Fatal(err)
//	}
//
// Directive Syntax:
//
// Values: {patient.name}, {report.items[0].code}, {.}, {$.title}
//
// Pipelines: {orders|sort:amount:desc|take:3}, {total|format:number:#,##0.00}
//
// Loops: a paragraph holding only {#items} opens a loop over items; a
// paragraph holding only {/items} closes it. The block between the two is
// emitted once per item, with the item as the current value.
//
// Conditionals: {?flag} ... {/?flag} keeps the enclosed block when flag is
// truthy.
//
// Images: a paragraph holding only {%chart} is replaced by an inline
// drawing; {%%chart} additionally centres the paragraph.
package docxmerge
