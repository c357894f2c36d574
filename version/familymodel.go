package version

import "fmt"

// SteppingMask clears the CPU stepping (low 4 bits) from a raw CPUID.1.EAX
// value, leaving the family-model identifier used for compatibility matching.
const SteppingMask = 0xFFFFFFF0

// CPUFamilyModel is a CPUID.1.EAX value with the stepping bits cleared.
// Two identifiers are compatible iff they are equal after masking.
type CPUFamilyModel uint32

// NewCPUFamilyModel masks the stepping bits off a raw CPUID.1.EAX value.
// Masking is idempotent: masking an already-masked value is a no-op.
func NewCPUFamilyModel(raw uint32) CPUFamilyModel {
	return CPUFamilyModel(raw & SteppingMask)
}

// Matches reports whether the raw CPUID.1.EAX value identifies the same
// family-model as f, ignoring stepping.
func (f CPUFamilyModel) Matches(raw uint32) bool {
	return f == NewCPUFamilyModel(raw)
}

func (f CPUFamilyModel) String() string {
	return fmt.Sprintf("0x%08X", uint32(f))
}
