//go:build !amd64

package isolate

import "github.com/pkg/errors"

// On architectures without a decoder/assembler in the pack (anything
// but amd64), method prolog patching degrades to cooperative-only
// shutdown per spec.md's REDESIGN FLAGS note: stack scrubbing and
// exception-handler pruning still run, but a doomed method already
// running native code keeps running until it next checks in
// cooperatively, instead of being patched out from under itself.
func buildTrampoline() ([]byte, error) {
	return nil, errors.New("isolate: method prolog patching unsupported on this architecture, degrading to cooperative shutdown")
}

func prologLength(code []byte, minBytes int) (int, error) {
	return 0, errors.New("isolate: method prolog patching unsupported on this architecture, degrading to cooperative shutdown")
}
