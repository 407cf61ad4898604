// Package privdrop drops root privileges to a named user. cmd/netpulse calls
// it after app.New has opened storage and before app.Run binds the
// listeners, so the listeners and the rest of the process run as that user.
package privdrop

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// UserSpec is the resolved identity a process drops into.
type UserSpec struct {
	Name   string
	UID    int
	GID    int
	Groups []int
	Home   string
}

// To drops the calling process's privileges to username's uid/gid/groups.
// It is a no-op if username is empty or the process isn't running as root,
// so it is always safe to call unconditionally at startup.
func To(username string) (*UserSpec, error) {
	if username == "" {
		return nil, nil
	}
	if os.Geteuid() != 0 {
		return nil, nil
	}

	spec, err := resolveUserSpec(username)
	if err != nil {
		return nil, err
	}
	if len(spec.Groups) == 0 {
		spec.Groups = []int{spec.GID}
	}

	if err := unix.Setgroups(spec.Groups); err != nil {
		return nil, fmt.Errorf("setgroups: %w", err)
	}
	if err := unix.Setgid(spec.GID); err != nil {
		return nil, fmt.Errorf("setgid: %w", err)
	}
	if err := unix.Setuid(spec.UID); err != nil {
		return nil, fmt.Errorf("setuid: %w", err)
	}

	if spec.Home != "" {
		_ = os.Setenv("HOME", spec.Home)
	}
	if spec.Name != "" {
		_ = os.Setenv("USER", spec.Name)
		_ = os.Setenv("LOGNAME", spec.Name)
	}

	return spec, nil
}

func resolveUserSpec(username string) (*UserSpec, error) {
	u, lookupErr := user.Lookup(username)
	if lookupErr == nil {
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return nil, fmt.Errorf("parse uid %q: %w", u.Uid, err)
		}
		gid, err := strconv.Atoi(u.Gid)
		if err != nil {
			return nil, fmt.Errorf("parse gid %q: %w", u.Gid, err)
		}

		var groups []int
		if gids, err := u.GroupIds(); err == nil {
			for _, g := range gids {
				if gidVal, convErr := strconv.Atoi(g); convErr == nil {
					groups = append(groups, gidVal)
				}
			}
		}
		if len(groups) == 0 {
			groups = []int{gid}
		}

		return &UserSpec{Name: u.Username, UID: uid, GID: gid, Groups: groups, Home: u.HomeDir}, nil
	}

	fallback, fallbackErr := lookupFromPasswd(username)
	if fallbackErr == nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("lookup user %q failed: %v (fallback: %w)", username, lookupErr, fallbackErr)
}

// lookupFromPasswd handles the minimal-container case where os/user can't
// resolve a name because nsswitch/cgo support is unavailable.
func lookupFromPasswd(username string) (*UserSpec, error) {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return nil, fmt.Errorf("open /etc/passwd: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != username {
			continue
		}

		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("parse uid %q: %w", fields[2], err)
		}
		gid, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("parse gid %q: %w", fields[3], err)
		}
		return &UserSpec{Name: username, UID: uid, GID: gid, Groups: []int{gid}, Home: fields[5]}, nil
	}
	return nil, fmt.Errorf("user %q not found in /etc/passwd", username)
}
