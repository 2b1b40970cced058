package canon

// Rule names a canonicalization that fired.
type Rule string

// RuleNone reports that no rule applied.
const RuleNone Rule = ""

// Division family.
const (
	RuleFoldConstant       Rule = "fold-constant"
	RuleDivByOne           Rule = "div-by-one"
	RuleDivByMinusOne      Rule = "div-by-minus-one"
	RuleDivPowerOfTwo      Rule = "div-power-of-two"
	RuleFloorCorrection    Rule = "floor-correction"
	RuleAdjacentDuplicate  Rule = "adjacent-duplicate"
	RuleRemByOne           Rule = "rem-by-one"
	RuleRemNegativeDivisor Rule = "rem-negative-divisor"
	RuleRemPowerOfTwo      Rule = "rem-power-of-two"
)

// Additive and bitwise operators.
const (
	RuleSubSelf          Rule = "sub-self"
	RuleSubZero          Rule = "sub-zero"
	RuleZeroSub          Rule = "zero-sub"
	RuleSubAddOperand    Rule = "sub-add-operand"
	RuleSubSubOperand    Rule = "sub-sub-operand"
	RuleSubNegate        Rule = "sub-negate"
	RuleSubConstant      Rule = "sub-constant"
	RuleAddCommute       Rule = "add-commute"
	RuleAddZero          Rule = "add-zero"
	RuleAddNegate        Rule = "add-negate"
	RuleAddSubOperand    Rule = "add-sub-operand"
	RuleAddReassociate   Rule = "add-reassociate"
	RuleNegNeg           Rule = "neg-neg"
	RuleNegSub           Rule = "neg-sub"
	RuleAndCommute       Rule = "and-commute"
	RuleAndZero          Rule = "and-zero"
	RuleAndMinusOne      Rule = "and-minus-one"
	RuleAndSelf          Rule = "and-self"
	RuleAndRedundantMask Rule = "and-redundant-mask"
	RuleShiftZero        Rule = "shift-zero"
	RuleShiftMerge       Rule = "shift-merge"
)

func (r Rule) String() string {
	if r == RuleNone {
		return "none"
	}
	return string(r)
}

// Fired reports whether r names a rule.
func (r Rule) Fired() bool { return r != RuleNone }
