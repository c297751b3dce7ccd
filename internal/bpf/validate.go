package bpf

import "fmt"

// validateProgram walks every instruction and confirms:
//   - no RET-less path: starting from instruction 0 and from every jump
//     target, following fall-through and both branch edges always reaches
//     a RET within the program bounds (never off the end);
//   - the program is non-empty and its final instruction is a kill, so any
//     path that falls off a JMP's untaken edge into the epilogue ends in
//     SECCOMP_RET_KILL per the spec's "programs ... end with a terminal
//     kill; any instruction reached by falling through is a kill".
func validateProgram(prog Program) error {
	if len(prog) == 0 {
		return fmt.Errorf("bpf: empty program")
	}
	last := prog[len(prog)-1]
	if !isRet(last) || last.K != RetKill {
		return fmt.Errorf("bpf: program does not end in a kill instruction")
	}

	visited := make([]bool, len(prog))
	var walk func(pc int) error
	walk = func(pc int) error {
		for {
			if pc < 0 || pc >= len(prog) {
				return fmt.Errorf("bpf: control flow runs off the end of the program at pc=%d", pc)
			}
			if visited[pc] {
				return nil
			}
			visited[pc] = true

			inst := prog[pc]
			switch {
			case isRet(inst):
				return nil
			case isJump(inst):
				if err := walk(pc + 1 + int(inst.Jt)); err != nil {
					return err
				}
				pc = pc + 1 + int(inst.Jf)
				continue
			default:
				pc++
				continue
			}
		}
	}

	return walk(0)
}

func isRet(inst Instruction) bool {
	return inst.Code&0x07 == opRET
}

func isJump(inst Instruction) bool {
	return inst.Code&0x07 == opJMP
}
