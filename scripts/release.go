// Command release resolves the next version from git tags and writes it to
// the VERSION file, or prints the linker flags stamping it into the binary.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

const versionPkg = "github.com/fastfinder/fastfinder/internal/version"

var (
	versionFile = "VERSION"
	versionFlag bool
	ldflagsFlag bool
)

func main() {
	pflag.BoolVarP(&versionFlag, "version", "v", false, "print the resolved version number")
	pflag.BoolVar(&ldflagsFlag, "ldflags", false, "print -ldflags stamping the resolved version and commit")
	pflag.Parse()

	if err := release(pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func release(args []string) error {
	if len(args) != 1 {
		return errors.New("expected one of major, minor, patch, current or a version number")
	}

	tags, err := gitTags()
	if err != nil {
		return err
	}
	version, err := latestVersion(tags)
	if err != nil {
		return err
	}
	if version, err = bumpVersion(version, args[0]); err != nil {
		return err
	}

	switch {
	case versionFlag:
		fmt.Println(version)
	case ldflagsFlag:
		commit, err := gitOutput("rev-parse", "--short", "HEAD")
		if err != nil {
			return err
		}
		fmt.Println(ldflags(version, commit))
	default:
		if err := os.WriteFile(versionFile, []byte(version.String()), 0644); err != nil {
			return errors.Wrap(err, "write version file")
		}
	}
	return nil
}

func gitOutput(args ...string) (string, error) {
	b, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", errors.Wrapf(err, "git %s", strings.Join(args, " "))
	}
	return strings.TrimSpace(string(b)), nil
}

func gitTags() ([]string, error) {
	out, err := gitOutput("tag", "-l", "[0-9]*.[0-9]*.[0-9]*", "v[0-9]*.[0-9]*.[0-9]*")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// latestVersion returns the highest semantic version among tags, ignoring
// tags that do not parse.
func latestVersion(tags []string) (*semver.Version, error) {
	var latest *semver.Version
	for _, tag := range tags {
		v, err := semver.NewVersion(tag)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
		}
	}
	if latest == nil {
		return nil, errors.New("no version tags found")
	}
	return latest, nil
}

func bumpVersion(version *semver.Version, verb string) (*semver.Version, error) {
	var next semver.Version
	switch verb {
	case "major":
		next = version.IncMajor()
	case "minor":
		next = version.IncMinor()
	case "patch":
		next = version.IncPatch()
	case "current":
		return version, nil
	default:
		v, err := semver.NewVersion(verb)
		if err != nil {
			return nil, errors.Wrapf(err, "parse version %q", verb)
		}
		if !v.GreaterThan(version) {
			return nil, errors.Errorf("version %s is not newer than %s", v, version)
		}
		return v, nil
	}
	return &next, nil
}

func ldflags(version *semver.Version, commit string) string {
	return fmt.Sprintf("-s -w -X %s.Version=%s -X %s.CommitSHA=%s", versionPkg, version, versionPkg, commit)
}
