package bpf

import "testing"

func TestEmitLoadOffsets(t *testing.T) {
	a := New()
	a.EmitLoadArch()
	a.EmitLoadSyscallNR()
	a.EmitLoadArg(0)
	a.EmitLoadArg(1)
	a.EmitLoadArg(2)

	prog := a.Program()
	want := []uint32{offArch, offSyscallNR, 16, 24, 32}
	for i, w := range want {
		if prog[i].K != w {
			t.Errorf("instruction %d: K = %d, want %d", i, prog[i].K, w)
		}
	}
}

func TestIfEqualPatchesFalseEdge(t *testing.T) {
	a := New()
	a.EmitLoadSyscallNR()
	a.IfEqual(42, func(a *Assembler) {
		a.EmitAllow()
	})
	a.EmitKill()

	prog := a.Program()
	// prog: [0]=load [1]=JEQ(jf patched) [2]=allow [3]=kill
	if len(prog) != 4 {
		t.Fatalf("len(prog) = %d, want 4", len(prog))
	}
	branch := prog[1]
	if branch.Jt != 0 {
		t.Errorf("Jt = %d, want 0 (fall through into body on match)", branch.Jt)
	}
	if branch.Jf != 1 {
		t.Errorf("Jf = %d, want 1 (skip body on mismatch)", branch.Jf)
	}
}

func TestIfMaskZeroPatchesTrueEdge(t *testing.T) {
	a := New()
	a.EmitLoadArg(1)
	a.IfMaskZero(0xFFFF0000, func(a *Assembler) {
		a.EmitAllow()
	})
	a.EmitKill()

	prog := a.Program()
	branch := prog[1]
	if branch.Jf != 0 {
		t.Errorf("Jf = %d, want 0 (fall through into body when mask is zero)", branch.Jf)
	}
	if branch.Jt != 1 {
		t.Errorf("Jt = %d, want 1 (skip body when any masked bit is set)", branch.Jt)
	}
}

func TestValidateRejectsMissingEpilogueKill(t *testing.T) {
	a := New()
	a.EmitLoadSyscallNR()
	a.EmitAllow()
	if err := a.Validate(); err == nil {
		t.Error("expected Validate to reject a program not ending in a kill")
	}
}

func TestValidateAcceptsWellFormedProgram(t *testing.T) {
	a := New()
	a.EmitLoadArch()
	a.KillUnless(0xC000003E)
	a.EmitLoadSyscallNR()
	a.IfEqual(0, func(a *Assembler) {
		a.EmitAllow()
	})
	a.IfEqual(1, func(a *Assembler) {
		a.EmitAllow()
	})
	a.EmitKill()

	if err := a.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsOffEndJump(t *testing.T) {
	prog := Program{
		{Code: opJMP | jmpJEQ | srcK, K: 1, Jt: 250, Jf: 0},
		{Code: opRET | srcK, K: RetKill},
	}
	if err := prog.Validate(); err == nil {
		t.Error("expected Validate to reject a jump target outside the program")
	}
}

func TestIfEqualPanicsOnOversizedBody(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on a body exceeding 255 instructions")
		}
	}()

	a := New()
	a.IfEqual(1, func(a *Assembler) {
		for i := 0; i < 300; i++ {
			a.EmitAllow()
		}
	})
}

func TestNestedConditionals(t *testing.T) {
	a := New()
	a.EmitLoadSyscallNR()
	a.IfEqual(41, func(a *Assembler) { // socket
		a.EmitLoadArg(0)
		a.IfEqual(1, func(a *Assembler) { // AF_UNIX
			a.EmitAllow()
		})
		a.EmitLoadArg(0)
		a.IfEqual(2, func(a *Assembler) { // AF_INET
			a.EmitAllow()
		})
	})
	a.EmitKill()

	if err := a.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	prog := a.Program()
	if prog[len(prog)-1].K != RetKill {
		t.Error("expected epilogue kill as final instruction")
	}
}
