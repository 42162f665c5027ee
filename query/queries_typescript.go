package query

import "github.com/oxhq/codegraph/lang"

func typescriptQueries() []Entry {
	ts := []lang.Language{lang.TypeScript}
	return []Entry{
		entry("ts-import-sources", ts, ResultImport, `
(import_statement source: (string (string_fragment) @source)) @import
(export_statement source: (string (string_fragment) @source)) @import
`, importsProcessorFn),

		entry("ts-declarations", ts, ResultDeclaration, `
(function_declaration name: (identifier) @function.name) @function.def
(class_declaration name: (type_identifier) @class.name) @class.def
(interface_declaration name: (type_identifier) @interface.name) @interface.def
(type_alias_declaration name: (type_identifier) @type.name) @type.def
(enum_declaration name: (identifier) @enum.name) @enum.def
(method_definition name: (property_identifier) @method.name) @method.def
`, declarationsProcessorFn),

		entry("ts-export-declarations", ts, ResultExport, `
(export_statement declaration: (function_declaration name: (identifier) @name)) @export
(export_statement declaration: (class_declaration name: (type_identifier) @name)) @export
(export_statement declaration: (interface_declaration name: (type_identifier) @name)) @export
(export_statement declaration: (type_alias_declaration name: (type_identifier) @name)) @export
(export_statement declaration: (lexical_declaration (variable_declarator name: (identifier) @name))) @export
(export_statement (export_clause (export_specifier name: (identifier) @name))) @export
`, exportsProcessorFn),

		entry("ts-class-relations", ts, ResultRelation, `
(class_declaration
  name: (type_identifier) @class.name
  (class_heritage (extends_clause value: (_) @extends)))
(class_declaration
  name: (type_identifier) @class.name
  (class_heritage (implements_clause (type_identifier) @implements)))
(interface_declaration
  name: (type_identifier) @class.name
  (extends_type_clause type: (type_identifier) @extends))
`, relationsProcessorFn),

		entry("ts-call-expressions", ts, ResultCall, `
(call_expression function: (identifier) @callee) @call
`, callsProcessorFn),
	}
}
