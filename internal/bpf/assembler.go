// Package bpf assembles classic BPF (seccomp) programs as a flat,
// forward-patched instruction vector. It has no platform build tag of its
// own: the instruction encoding is just data, and keeping the assembler
// portable lets its invariants (see Program.Validate) run in ordinary unit
// tests on any host.
package bpf

// Instruction is the classical BPF instruction record:
// { code uint16, jt uint8, jf uint8, k uint32 }.
type Instruction struct {
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

// Opcodes used by the filter compiler. Named after their BPF_* constants
// rather than golang.org/x/sys/unix's copies so this package stays
// buildable without the unix import; internal/seccomp converts to
// unix.SockFilter at install time.
const (
	opLD  = 0x00
	opJMP = 0x05
	opRET = 0x06

	modW   = 0x00
	modABS = 0x20

	jmpJEQ  = 0x10
	jmpJSET = 0x40

	srcK = 0x00
)

// Seccomp return actions (SECCOMP_RET_*).
const (
	RetKill  uint32 = 0x00000000
	RetAllow uint32 = 0x7fff0000
)

// Seccomp input record offsets (struct seccomp_data).
const (
	offSyscallNR = 0
	offArch      = 4
	offArgBase   = 16
)

// Assembler builds a BPF program as an append-only instruction buffer. Its
// structured-emission helpers (IfEqual, IfMaskZero) replace the
// callback-with-mutable-self pattern of the original Rust implementation
// with a scoped builder: each records the branch instruction's index,
// recurses to emit the conditional body, then patches the jump offset on
// return. The resulting closures are valid only for the duration of the
// call that receives them — do not stash the *Assembler passed to a body
// function and call into it later.
type Assembler struct {
	prog []Instruction
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{}
}

// Len reports the number of instructions emitted so far.
func (a *Assembler) Len() int {
	return len(a.prog)
}

// Program returns the assembled instruction sequence. The returned slice
// aliases the Assembler's internal buffer and must not be mutated.
func (a *Assembler) Program() []Instruction {
	return a.prog
}

// EmitLoadSyscallNR loads the syscall number (offset 0) into the
// accumulator.
func (a *Assembler) EmitLoadSyscallNR() {
	a.prog = append(a.prog, Instruction{Code: opLD | modW | modABS, K: offSyscallNR})
}

// EmitLoadArch loads the audit architecture word (offset 4) into the
// accumulator.
func (a *Assembler) EmitLoadArch() {
	a.prog = append(a.prog, Instruction{Code: opLD | modW | modABS, K: offArch})
}

// EmitLoadArg loads the low 32 bits of syscall argument i (offset
// 16 + 8*i) into the accumulator.
func (a *Assembler) EmitLoadArg(i int) {
	a.prog = append(a.prog, Instruction{Code: opLD | modW | modABS, K: uint32(offArgBase + 8*i)}) //nolint:gosec // i is a small constant syscall arg index
}

// EmitAllow emits a terminal SECCOMP_RET_ALLOW instruction.
func (a *Assembler) EmitAllow() {
	a.prog = append(a.prog, Instruction{Code: opRET | srcK, K: RetAllow})
}

// EmitKill emits a terminal SECCOMP_RET_KILL instruction.
func (a *Assembler) EmitKill() {
	a.prog = append(a.prog, Instruction{Code: opRET | srcK, K: RetKill})
}

// IfEqual emits "if accumulator == value" using BPF_JMP|BPF_JEQ|BPF_K: body
// runs when the comparison is true (the instruction's jt falls through into
// it); when false, execution jumps past body to whatever is emitted next.
// The branch instruction's not-taken offset is patched to len-index-1 after
// body returns, per the spec's forward-patching scheme.
func (a *Assembler) IfEqual(value uint32, body func(*Assembler)) {
	index := len(a.prog)
	a.prog = append(a.prog, Instruction{Code: opJMP | jmpJEQ | srcK, K: value})
	body(a)
	a.prog[index].Jf = offsetFrom(index, len(a.prog))
}

// IfMaskZero emits "if accumulator & mask == 0" using
// BPF_JMP|BPF_JSET|BPF_K: JSET fires (branches taken) when any masked bit
// is set, so body (the "allowed" path) runs only on the not-taken edge —
// i.e. when none of mask's bits are present in the accumulator. Pass the
// complement of an allowed bit set as mask to express "no disallowed bit is
// set".
func (a *Assembler) IfMaskZero(mask uint32, body func(*Assembler)) {
	index := len(a.prog)
	a.prog = append(a.prog, Instruction{Code: opJMP | jmpJSET | srcK, K: mask})
	body(a)
	a.prog[index].Jt = offsetFrom(index, len(a.prog))
}

// KillUnless emits the architecture-check prologue pattern described by the
// spec's compiler algorithm step 1: "load the architecture word; if not
// equal to the expected arch, fall through to kill; otherwise skip the
// kill." This is deliberately not expressed via IfEqual — the two forms
// differ in which edge is the taken one (IfEqual falls through to its body
// on a match and skips it on a mismatch; here the process dies on a
// mismatch and survives on a match), so giving it its own emission avoids
// a confusing double meaning for "patch the taken edge".
func (a *Assembler) KillUnless(value uint32) {
	a.prog = append(a.prog, Instruction{Code: opJMP | jmpJEQ | srcK, K: value, Jt: 1, Jf: 0})
	a.EmitKill()
}

func offsetFrom(index, newLen int) uint8 {
	offset := newLen - index - 1
	if offset < 0 || offset > 255 {
		panic("bpf: jump offset out of range; conditional body exceeded 255 instructions")
	}
	return uint8(offset) //nolint:gosec // bounds checked immediately above
}

// Program is a read-only assembled instruction sequence.
type Program []Instruction

// Validate checks the two structural invariants the spec requires of every
// assembled program (P6): every branch offset must fit in a single byte
// (trivially true here since offsetFrom enforces it at emission time), and
// every fall-through path must terminate at a kill. We check the latter by
// simulating: starting from each jump target and from straight-line
// fall-through, every execution path must reach a RET instruction, and the
// very last instruction in the program must be a kill (RetKill).
func (prog Program) Validate() error {
	return validateProgram(prog)
}

// Validate runs Program.Validate over the instructions emitted so far.
func (a *Assembler) Validate() error {
	return Program(a.prog).Validate()
}
