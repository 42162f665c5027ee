package query

import "github.com/oxhq/codegraph/lang"

func goQueries() []Entry {
	golang := []lang.Language{lang.Go}
	return []Entry{
		entry("go-import-sources", golang, ResultImport, `
(import_spec path: (interpreted_string_literal) @source) @import
`, importsProcessorFn),

		entry("go-declarations", golang, ResultDeclaration, `
(function_declaration name: (identifier) @function.name) @function.def
(method_declaration name: (field_identifier) @method.name) @method.def
(type_declaration (type_spec name: (type_identifier) @interface.name type: (interface_type))) @interface.def
(type_declaration (type_spec name: (type_identifier) @type.name)) @type.def
(const_declaration (const_spec name: (identifier) @constant.name)) @constant.def
(var_declaration (var_spec name: (identifier) @variable.name)) @variable.def
`, declarationsProcessorFn),

		entry("go-call-expressions", golang, ResultCall, `
(call_expression function: (identifier) @callee) @call
(call_expression function: (selector_expression field: (field_identifier) @callee)) @call
`, callsProcessorFn),
	}
}
