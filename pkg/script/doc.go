// Package script executes procedural SQL scripts.
//
// A script is a Tree of nodes: compound blocks, IF and CASE conditionals,
// WHILE, REPEAT, LOOP and FOR loops, LEAVE and ITERATE jumps, and leaf
// statements. Build validates a tree and resolves its labels and handlers
// into a Plan. The plan's Iterator walks the tree with an explicit
// activation stack and yields leaf statements one at a time; guards,
// CASE comparisons and FOR queries are evaluated internally through the
// Evaluator and never reach the caller.
//
// Typical use:
//
//	plan, err := script.Build(tree, args, script.Options{Evaluator: eval})
//	if err != nil {
//		return err
//	}
//	it := plan.Statements()
//	for {
//		stmt, err := it.Next(ctx)
//		if err != nil || stmt == nil {
//			return err
//		}
//		if _, err := eval.Execute(ctx, stmt, it.Scopes()); err != nil {
//			if err := it.Raise(ctx, err); err != nil {
//				return err
//			}
//		}
//	}
//
// Run does the same and collects the results.
package script
