package egpgraph

// Classify identifies a connection graph's structural Kind from the set of
// rows it has interfaces for (spec §4.4.1), grounded on json_cgraph.py's
// c_graph_type: presence of F implies a conditional (IF_THEN or
// IF_THEN_ELSE depending on whether B is also present); presence of L or W
// implies a loop; presence of B without F/L/W implies STANDARD; presence of
// A alone implies PRIMITIVE; otherwise EMPTY.
func Classify(present map[Row]bool) Kind {
	switch {
	case present[RowF]:
		if present[RowB] {
			return KindIfThenElse
		}
		return KindIfThen
	case present[RowL]:
		return KindForLoop
	case present[RowW]:
		return KindWhileLoop
	case present[RowB]:
		return KindStandard
	case present[RowA]:
		return KindPrimitive
	default:
		return KindEmpty
	}
}

// ClassifyKeys identifies a graph's Kind from its interface keys (e.g. as
// returned by CGraph.Keys or FrozenCGraph.Keys).
func ClassifyKeys(keys []string) Kind {
	present := make(map[Row]bool, len(keys))
	for _, k := range keys {
		if len(k) > 0 {
			present[Row(k[0])] = true
		}
	}
	return Classify(present)
}
