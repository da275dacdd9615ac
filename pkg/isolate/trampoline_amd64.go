//go:build amd64

package isolate

import (
	"reflect"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
	"golang.org/x/arch/x86/x86asm"
)

// buildTrampoline assembles, via golang-asm's x86 backend (the same
// obj.Prog/obj/x86 API tetratelabs/wazero's amd64 JIT builder uses),
// "MOVQ $raiseIsolateDead, AX; JMP AX" — the Go analogue of
// JnjvmIsolateTerm.cpp's StoppedIsolate_Redirect_CallToDeadMethod hand-
// written asm block, built through an assembler instead of inline asm
// since Go forbids inline asm outside the runtime package.
func buildTrampoline() ([]byte, error) {
	b, err := asm.NewBuilder("amd64", 8)
	if err != nil {
		return nil, err
	}

	target := int64(reflect.ValueOf(raiseIsolateDead).Pointer())

	mov := b.NewProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = target
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	b.AddInstruction(mov)

	jmp := b.NewProg()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = x86.REG_AX
	b.AddInstruction(jmp)

	return b.Assemble()
}

// prologLength decodes code one x86-64 instruction at a time until at
// least minBytes have been covered by whole instructions, matching the
// original's requirement that redirectMethodProlog's memcpy never
// split an instruction in half. Returns the number of bytes safe to
// overwrite.
func prologLength(code []byte, minBytes int) (int, error) {
	total := 0
	for total < minBytes {
		if total >= len(code) {
			return 0, errWrapShort(len(code), minBytes)
		}
		inst, err := x86asm.Decode(code[total:], 64)
		if err != nil {
			return 0, err
		}
		if inst.Len == 0 {
			return 0, errWrapShort(len(code), minBytes)
		}
		total += inst.Len
	}
	return total, nil
}
