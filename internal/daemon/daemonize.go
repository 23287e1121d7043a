/*
 * ILA control plane. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package daemon implements the -d/--daemonize flag: detaching the
// process from its controlling terminal into its own session.
package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// reexecEnv marks a process as the already-detached child, so Daemonize
// only ever re-execs once.
const reexecEnv = "ILA_DAEMONIZED"

// Daemonize detaches the current process into a new session. The
// original daemon this descends from does this with a single fork plus
// setsid; Go cannot safely fork a multi-threaded runtime, so the
// equivalent here is a re-exec of the same binary and arguments with
// Setsid set, followed by the parent exiting. The child inherits
// reexecEnv and returns immediately instead of re-daemonizing itself.
func Daemonize() error {
	if os.Getenv(reexecEnv) == "1" {
		return nil
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devnull.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecEnv+"=1")
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.Dir = os.TempDir()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	os.Exit(0)
	return nil
}
