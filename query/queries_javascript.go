package query

import "github.com/oxhq/codegraph/lang"

func javascriptQueries() []Entry {
	js := []lang.Language{lang.JavaScript}
	return []Entry{
		entry("js-import-sources", js, ResultImport, `
(import_statement source: (string (string_fragment) @source)) @import
(export_statement source: (string (string_fragment) @source)) @import
`, importsProcessorFn),

		entry("js-declarations", js, ResultDeclaration, `
(function_declaration name: (identifier) @function.name) @function.def
(class_declaration name: (identifier) @class.name) @class.def
(method_definition name: (property_identifier) @method.name) @method.def
(lexical_declaration (variable_declarator name: (identifier) @variable.name)) @variable.def
`, declarationsProcessorFn),

		entry("js-export-declarations", js, ResultExport, `
(export_statement declaration: (function_declaration name: (identifier) @name)) @export
(export_statement declaration: (class_declaration name: (identifier) @name)) @export
(export_statement declaration: (lexical_declaration (variable_declarator name: (identifier) @name))) @export
(export_statement (export_clause (export_specifier name: (identifier) @name))) @export
`, exportsProcessorFn),

		entry("js-class-relations", js, ResultRelation, `
(class_declaration
  name: (identifier) @class.name
  (class_heritage (identifier) @extends))
`, relationsProcessorFn),

		entry("js-call-expressions", js, ResultCall, `
(call_expression function: (identifier) @callee) @call
`, callsProcessorFn),
	}
}
