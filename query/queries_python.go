package query

import "github.com/oxhq/codegraph/lang"

func pythonQueries() []Entry {
	py := []lang.Language{lang.Python}
	return []Entry{
		entry("py-import-sources", py, ResultImport, `
(import_statement name: (dotted_name) @source) @import
(import_statement name: (aliased_import name: (dotted_name) @source)) @import
(import_from_statement module_name: (dotted_name) @source) @import
(import_from_statement module_name: (relative_import) @source) @import
`, importsProcessorFn),

		entry("py-declarations", py, ResultDeclaration, `
(function_definition name: (identifier) @function.name) @function.def
(class_definition name: (identifier) @class.name) @class.def
`, declarationsProcessorFn),

		entry("py-class-relations", py, ResultRelation, `
(class_definition
  name: (identifier) @class.name
  superclasses: (argument_list (identifier) @extends))
`, relationsProcessorFn),

		entry("py-call-expressions", py, ResultCall, `
(call function: (identifier) @callee) @call
`, callsProcessorFn),
	}
}
