package mksh

// evalDBracketFields evaluates an already-expanded `[[ ... ]]` operand list
// using the same unary/binary test primitives as the plain `test`/`[`
// builtin, plus `&&`/`||` conjunction and a leading `!` negation (spec §4.4
// "TDBRACKET: dispatch to the [[ ... ]] evaluator"; spec §1 Non-goals: the
// full `[[ ]]` grammar — `=~`, `<`/`>` string ordering, parenthesized
// grouping — is out of scope; this core covers the common
// unary/binary/boolean-combination surface a test script exercises).
func evalDBracketFields(sh *Shell, fields []string) int {
	return boolStatus(evalDBracketOr(sh, fields))
}

func evalDBracketOr(sh *Shell, fields []string) bool {
	for i, f := range fields {
		if f == "||" {
			return evalDBracketOr(sh, fields[:i]) || evalDBracketOr(sh, fields[i+1:])
		}
	}
	return evalDBracketAnd(sh, fields)
}

func evalDBracketAnd(sh *Shell, fields []string) bool {
	for i, f := range fields {
		if f == "&&" {
			return evalDBracketAnd(sh, fields[:i]) && evalDBracketAnd(sh, fields[i+1:])
		}
	}
	return evalDBracketTerm(sh, fields)
}

func evalDBracketTerm(sh *Shell, fields []string) bool {
	neg := false
	for len(fields) > 0 && fields[0] == "!" {
		neg = !neg
		fields = fields[1:]
	}
	var result bool
	switch len(fields) {
	case 0:
		result = false
	case 1:
		result = fields[0] != ""
	case 2:
		result = testUnary(sh, fields[0], fields[1])
	case 3:
		result = testBinary(fields[0], fields[1], fields[2])
	default:
		result = true
	}
	return result != neg
}
