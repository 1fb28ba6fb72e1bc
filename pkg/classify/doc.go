// Package classify parses User-Agent strings into device categories used
// by the routing decision. Classification is a pure function evaluated as
// an ordered cascade of signature lists; the first matching rule wins, so
// precedence between overlapping signatures (TV firmware embedding a
// browser engine token, for example) is explicit and testable.
package classify
