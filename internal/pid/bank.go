package pid

import "fmt"

// MaxProfileCount is the number of profile slots in a ProfileBank.
const MaxProfileCount = 3

// ProfileBank holds the selectable PID profiles. It has no locking; callers
// serialise access with the control loop.
type ProfileBank struct {
	profiles [MaxProfileCount]Profile
	active   int
}

// NewProfileBank returns a bank with every slot at DefaultProfile and slot 0
// selected.
func NewProfileBank() *ProfileBank {
	b := &ProfileBank{}
	for i := range b.profiles {
		b.profiles[i] = DefaultProfile()
	}
	return b
}

func validProfileIndex(i int) bool { return i >= 0 && i < MaxProfileCount }

// Profile returns a copy of slot i.
func (b *ProfileBank) Profile(i int) (Profile, error) {
	if !validProfileIndex(i) {
		return Profile{}, fmt.Errorf("profile index %d out of range [0,%d)", i, MaxProfileCount)
	}
	return b.profiles[i], nil
}

// SetProfile replaces slot i.
func (b *ProfileBank) SetProfile(i int, p Profile) error {
	if !validProfileIndex(i) {
		return fmt.Errorf("profile index %d out of range [0,%d)", i, MaxProfileCount)
	}
	b.profiles[i] = p
	return nil
}

// ResetProfile restores slot i to DefaultProfile. Invalid indices are ignored.
func (b *ProfileBank) ResetProfile(i int) {
	if validProfileIndex(i) {
		b.profiles[i] = DefaultProfile()
	}
}

// CopyProfile copies slot src over slot dst. Out of range or equal indices
// are silently ignored; callers that need confirmation validate first.
func (b *ProfileBank) CopyProfile(dst, src int) {
	if validProfileIndex(dst) && validProfileIndex(src) && dst != src {
		b.profiles[dst] = b.profiles[src]
	}
}

// Select makes slot i the active profile.
func (b *ProfileBank) Select(i int) error {
	if !validProfileIndex(i) {
		return fmt.Errorf("profile index %d out of range [0,%d)", i, MaxProfileCount)
	}
	b.active = i
	return nil
}

// ActiveIndex returns the selected slot.
func (b *ProfileBank) ActiveIndex() int { return b.active }

// Active returns a copy of the selected profile.
func (b *ProfileBank) Active() Profile { return b.profiles[b.active] }
