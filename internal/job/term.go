// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package job

import "golang.org/x/term"

// SaveTermState captures the controlling terminal's current mode so it
// can be restored after a function call or foreground job leaves it in
// an unexpected state (§5 "the shell must save/restore terminal
// attributes across function execution").
func (m *Manager) SaveTermState() (*term.State, error) {
	if m.TTYFd < 0 {
		return nil, nil
	}
	return term.GetState(m.TTYFd)
}

// RestoreTermState reapplies a state captured by SaveTermState. A nil
// state (no controlling terminal, or capture failed) is a no-op.
func (m *Manager) RestoreTermState(state *term.State) error {
	if m.TTYFd < 0 || state == nil {
		return nil
	}
	return term.Restore(m.TTYFd, state)
}
