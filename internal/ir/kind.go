package ir

// Kind identifies an instruction's semantics.
type Kind string

const (
	KindNO    Kind = "NO"    // normally open contact
	KindNC    Kind = "NC"    // normally closed contact
	KindCoil  Kind = "COIL"  // output coil
	KindSet   Kind = "SET"   // latching set coil
	KindReset Kind = "RESET" // unlatching reset coil
	KindSR    Kind = "SR"    // set-dominant flip-flop
	KindRS    Kind = "RS"    // reset-dominant flip-flop

	KindAnd    Kind = "AND"
	KindOrGate Kind = "OR_GATE" // distinct from the parallel-branch OR
	KindXor    Kind = "XOR"

	KindTON  Kind = "TON"  // on-delay timer
	KindTOF  Kind = "TOF"  // off-delay timer
	KindTONR Kind = "TONR" // retentive on-delay timer
	KindCTU  Kind = "CTU"  // up counter
	KindCTD  Kind = "CTD"  // down counter
	KindCTUD Kind = "CTUD" // up/down counter

	KindMov    Kind = "MOV"
	KindAdd    Kind = "ADD"
	KindSub    Kind = "SUB"
	KindMul    Kind = "MUL"
	KindDiv    Kind = "DIV"
	KindNormX  Kind = "NORM_X"
	KindScaleX Kind = "SCALE_X"
	KindSCP    Kind = "SCP"
	KindPID    Kind = "PID"

	KindEQ Kind = "EQ"
	KindNE Kind = "NE"
	KindGT Kind = "GT"
	KindGE Kind = "GE"
	KindLT Kind = "LT"
	KindLE Kind = "LE"
)

// ValidKinds defines the instruction set understood by the engine.
var ValidKinds = map[Kind]bool{
	KindNO: true, KindNC: true, KindCoil: true, KindSet: true, KindReset: true,
	KindSR: true, KindRS: true,
	KindAnd: true, KindOrGate: true, KindXor: true,
	KindTON: true, KindTOF: true, KindTONR: true,
	KindCTU: true, KindCTD: true, KindCTUD: true,
	KindMov: true, KindAdd: true, KindSub: true, KindMul: true, KindDiv: true,
	KindNormX: true, KindScaleX: true, KindSCP: true, KindPID: true,
	KindEQ: true, KindNE: true, KindGT: true, KindGE: true, KindLT: true, KindLE: true,
}

// IsTimer reports whether k is a timer kind.
func (k Kind) IsTimer() bool {
	return k == KindTON || k == KindTOF || k == KindTONR
}

// IsCounter reports whether k is a counter kind.
func (k Kind) IsCounter() bool {
	return k == KindCTU || k == KindCTD || k == KindCTUD
}

// IsContact reports whether k is a contact, the only kinds honouring a
// per-instance force override.
func (k Kind) IsContact() bool {
	return k == KindNO || k == KindNC
}

// Stateful reports whether instances of k carry memory across scans
// keyed by instruction id.
func (k Kind) Stateful() bool {
	return k.IsTimer() || k.IsCounter() || k == KindPID
}

// Mode is the engine's operating mode.
type Mode string

const (
	ModeStop   Mode = "STOP"
	ModeRun    Mode = "RUN"
	ModePause  Mode = "PAUSE"
	ModeOnline Mode = "ONLINE" // reserved; rejected by the engine
)

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeStop, ModeRun, ModePause, ModeOnline:
		return m, true
	default:
		return "", false
	}
}
