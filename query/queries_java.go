package query

import "github.com/oxhq/codegraph/lang"

func javaQueries() []Entry {
	java := []lang.Language{lang.Java}
	return []Entry{
		entry("java-import-sources", java, ResultImport, `
(import_declaration (scoped_identifier) @source) @import
`, importsProcessorFn),

		entry("java-declarations", java, ResultDeclaration, `
(class_declaration name: (identifier) @class.name) @class.def
(interface_declaration name: (identifier) @interface.name) @interface.def
(enum_declaration name: (identifier) @enum.name) @enum.def
(method_declaration name: (identifier) @method.name) @method.def
(constructor_declaration name: (identifier) @constructor.name) @constructor.def
(field_declaration declarator: (variable_declarator name: (identifier) @property.name)) @property.def
`, declarationsProcessorFn),

		entry("java-class-relations", java, ResultRelation, `
(class_declaration
  name: (identifier) @class.name
  superclass: (superclass (type_identifier) @extends))
(class_declaration
  name: (identifier) @class.name
  interfaces: (super_interfaces (type_list (type_identifier) @implements)))
`, relationsProcessorFn),

		entry("java-call-expressions", java, ResultCall, `
(method_invocation name: (identifier) @callee) @call
`, callsProcessorFn),
	}
}
