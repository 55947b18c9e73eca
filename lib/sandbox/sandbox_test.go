// Copyright 2026 The Rio9p Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "testing"

func TestCheckAllowsUnrestrictedReads(t *testing.T) {
	v := New("/n")
	cases := []string{
		"cat /etc/passwd",
		"ls -la /home",
		"grep -r TODO /src",
		"head -n 50 /var/log/syslog",
		"find / -name '*.py' -type f",
		"wc -l /src/main.go",
	}
	for _, cmd := range cases {
		if ok, reason := v.Check(cmd); !ok {
			t.Errorf("Check(%q) = false, %q; want allowed", cmd, reason)
		}
	}
}

func TestCheckAllowsWritesUnderRoot(t *testing.T) {
	v := New("/n")
	cases := []string{
		"echo hello > /n/llm/input",
		"cp /etc/config /n/backup/config",
		"mkdir -p /n/workspace/new",
		"touch /n/workspace/file.txt",
	}
	for _, cmd := range cases {
		if ok, reason := v.Check(cmd); !ok {
			t.Errorf("Check(%q) = false, %q; want allowed", cmd, reason)
		}
	}
}

func TestCheckBlocksDestructiveCommandsRegardlessOfPath(t *testing.T) {
	v := New("/n")
	cases := []string{
		"rm -rf /",
		"rm /n/workspace/file.txt",
		"sudo cat /etc/shadow",
		"dd if=/dev/zero of=/dev/sda",
		"mkfs.ext4 /dev/sda1",
		"apt-get install nginx",
		"npm install -g something",
	}
	for _, cmd := range cases {
		if ok, _ := v.Check(cmd); ok {
			t.Errorf("Check(%q) = true; want blocked", cmd)
		}
	}
}

func TestCheckBlocksForkBombs(t *testing.T) {
	v := New("/n")
	cases := []string{
		":(){ :|:& };:",
		"bomb() { bomb | bomb & }; bomb",
	}
	for _, cmd := range cases {
		if ok, _ := v.Check(cmd); ok {
			t.Errorf("Check(%q) = true; want blocked as a fork bomb", cmd)
		}
	}
}

func TestCheckBlocksWritesOutsideRoot(t *testing.T) {
	v := New("/n")
	cases := []string{
		"echo pwned > /tmp/evil",
		"mv /etc/passwd /etc/passwd.bak",
		"cp /n/data /tmp/exfil",
		"chmod 777 /etc/passwd",
	}
	for _, cmd := range cases {
		if ok, _ := v.Check(cmd); ok {
			t.Errorf("Check(%q) = true; want blocked", cmd)
		}
	}
}

func TestCheckBlocksShellEscapes(t *testing.T) {
	v := New("/n")
	cases := []string{
		"bash -c 'rm -rf /'",
		"eval 'rm -rf /'",
		`python3 -c 'import os; os.remove("/etc/passwd")'`,
	}
	for _, cmd := range cases {
		if ok, _ := v.Check(cmd); ok {
			t.Errorf("Check(%q) = true; want blocked", cmd)
		}
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	v := New("/n")
	cmd := "sed -i 's/root/pwned/' /etc/passwd"
	ok1, reason1 := v.Check(cmd)
	ok2, reason2 := v.Check(cmd)
	if ok1 != ok2 || reason1 != reason2 {
		t.Fatalf("Check not idempotent: (%v,%q) != (%v,%q)", ok1, reason1, ok2, reason2)
	}
}

func TestCheckAllowsBlankCommand(t *testing.T) {
	v := New("/n")
	if ok, reason := v.Check("   "); !ok {
		t.Fatalf("Check(blank) = false, %q; want allowed", reason)
	}
}
