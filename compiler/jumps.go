package compiler

// Forward jump targets are computed once, from the length of the output
// vector at the moment the guard is emitted; nothing is patched later.
// Both formulas assume every guard and every branch occupies exactly
// guardFootprint slots, which lowerBranch enforces by wrapping longer
// branches in an InlineBlock.
const guardFootprint = 1

// caseFailTarget returns where the Case guard of an If, emitted at index
// length, continues when the condition is not true: just past the then
// branch, which is the else branch when there is one.
//
//	length+0  CASE {value [BOOL true]} else target
//	length+1  then
//	length+2  JUMP length+4        (only with else)
//	length+3  else
func caseFailTarget(length int, hasElse bool) int {
	target := length + 2*guardFootprint
	if hasElse {
		target += guardFootprint
	}
	return target
}

// elseSkipTarget returns the target of the Jump emitted at index length
// that carries the then branch past the else branch.
func elseSkipTarget(length int) int {
	return length + 2*guardFootprint
}
