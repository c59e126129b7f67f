// Package mksh implements the lexer, word encoder, and tree executor at the
// core of a POSIX-plus-Korn shell: the input source stack and character
// reader, the lexical state machine and its typed word encoding, the
// here-document collector, the command tree model, the tree executor, the
// redirection engine, and the error/unwind protocol.
//
// Word expansion, the builtin command table, the variable symbol table,
// pattern matching, job control, and history are all out of this package's
// scope; it defines narrow Go interfaces for each (Expander, BuiltinRegistry,
// SymbolTable, GlobMatcher, ProcessHost) and ships minimal real
// implementations so the executor can run standalone, but a host program is
// expected to supply its own.
package mksh
