package bake

// Expand substitutes bindings into a sequence of template terms, producing
// a word list. Per §4.3: literal segments are appended verbatim; a
// %name reference looked up in bindings multiplies the containing term's
// expansion set by its bound values (the Cartesian product, so two plural
// variables in one term cross-multiply); an unbound reference is not an
// error — it is left as the literal text "%name".
func Expand(bindings Bindings, template []*Term) WordList {
	var out WordList
	for _, term := range template {
		out = append(out, expandTerm(bindings, term)...)
	}
	return out
}

// expandTerm expands a single template term, returning the words produced
// by that term alone (a plural variable multiplies only its own term, not
// the whole template).
func expandTerm(bindings Bindings, term *Term) WordList {
	current := []string{""}

	for i, lit := range term.literal {
		for j := range current {
			current[j] += lit
		}

		if i >= len(term.vars) {
			continue
		}

		occ := term.vars[i]
		values, ok := bindings.Get(occ.name)
		if !ok {
			token := "%" + string(occ.name)
			if occ.plural {
				token = "%@" + string(occ.name)
			}
			for j := range current {
				current[j] += token
			}
			continue
		}

		if len(values) == 0 {
			// A plural variable bound to the empty list multiplies this
			// term's expansion set by zero: the term contributes no words
			// at all, matching Cartesian-product-with-empty-set semantics.
			current = nil
			break
		}

		// The most recently bound variable is the slow-varying one: loop
		// over its values on the outside, so earlier-bound variables (and
		// their relative order) cycle fastest. This is what makes
		// "%@xs-%@ys" with xs=[1 2 3], ys=[a b] expand to
		// [1-a 2-a 3-a 1-b 2-b 3-b] rather than [1-a 1-b 2-a 2-b 3-a 3-b].
		next := make([]string, 0, len(current)*len(values))
		for _, v := range values {
			for _, prefix := range current {
				next = append(next, prefix+string(v))
			}
		}
		current = next
	}

	out := make(WordList, len(current))
	for i, s := range current {
		out[i] = Word(s)
	}
	return out
}
