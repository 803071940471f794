package task

import (
	"reflect"
	"time"
)

// ChooseCase is one branch of a Choose expression: a receivable channel and
// the callback invoked with the received value when that branch fires.
type ChooseCase struct {
	Chan reflect.Value
	Recv func(v reflect.Value, ok bool)
}

// Recv builds a ChooseCase from a typed channel, matching the spec's
// choose{recv(ch) => ...} branch form.
func Recv[T any](ch <-chan T, fn func(v T, ok bool)) ChooseCase {
	return ChooseCase{
		Chan: reflect.ValueOf(ch),
		Recv: func(v reflect.Value, ok bool) {
			if !ok {
				var zero T
				fn(zero, false)
				return
			}
			fn(v.Interface().(T), true)
		},
	}
}

// Choose selects the first ready branch among cases, or fires the deadline
// branch if none becomes ready before deadline elapses (the zero Time means
// no deadline, mirroring the spec's -1 sentinel). It returns the index of
// the branch that fired, or -1 if the deadline fired.
func Choose(deadline time.Time, cases ...ChooseCase) int {
	selectCases := make([]reflect.SelectCase, 0, len(cases)+1)
	for _, c := range cases {
		selectCases = append(selectCases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: c.Chan,
		})
	}

	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		selectCases = append(selectCases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(timer.C),
		})
	}

	chosen, recv, ok := reflect.Select(selectCases)
	if chosen == len(cases) {
		// Deadline branch fired.
		return -1
	}
	cases[chosen].Recv(recv, ok)
	return chosen
}
