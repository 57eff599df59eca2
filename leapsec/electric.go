/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package leapsec

// ElectricMode selects what Electric does
type ElectricMode int

// Electric modes
const (
	// ElectricQuery reports the mode without changing it
	ElectricQuery ElectricMode = iota - 1
	// ElectricOff is manual mode: the caller steps the clock on a leap
	ElectricOff
	// ElectricOn leaves leap handling to the kernel
	ElectricOn
)

// Electric sets or queries the mode and returns the mode in effect before
// the call. The due time of a pending transition differs between modes, so
// switching within two seconds of a removal may lose it.
func (l *Leapsec) Electric(mode ElectricMode) bool {
	prev := l.electric.Load()
	if mode == ElectricQuery {
		return prev
	}
	on := mode == ElectricOn
	if on != prev {
		l.electric.Store(on)
		l.frame.setDue(on)
	}
	return prev
}
