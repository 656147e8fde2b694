package policy

import "regexp"

var (
	accountTools = commandRe(
		`passwd`, `chpasswd`, `usermod`, `useradd`, `userdel`, `adduser`, `deluser`,
		`addgroup`, `delgroup`, `groupadd`, `groupdel`, `groupmod`, `gpasswd`, `newusers`,
		`chage`, `vipw`, `vigr`, `pwck`, `grpck`, `userdbctl`, `pwconv`, `pwunconv`,
		`grpconv`, `grpunconv`, `chsh`, `chfn`, `visudo`, `dscl`, `sysadminctl`,
	)

	accountFiles = `/etc/(?:passwd|shadow|group|gshadow|sudoers(?:\.d)?|master\.passwd)\b`

	accountFileWrites = []*regexp.Regexp{
		regexp.MustCompile(`>\s*` + accountFiles),
		regexp.MustCompile(`\btee\s+(?:-\S+\s+)*` + accountFiles),
		regexp.MustCompile(`\bsed\s+(?:\S+\s+)*-i\S*\s.*` + accountFiles),
		regexp.MustCompile(`\b(?:vi|vim|nvim|nano|emacs|ed)\s+` + accountFiles),
		regexp.MustCompile(`\b(?:cp|mv|install|ln)\s+.*\s` + accountFiles),
	}

	authConfig = []*regexp.Regexp{
		regexp.MustCompile(`/etc/pam\.d\b`),
		regexp.MustCompile(`\bauthconfig\b`),
		regexp.MustCompile(`\bauthselect\b`),
		regexp.MustCompile(`\bsystem-auth\b`),
		regexp.MustCompile(`\bpam_tally2?\b`),
		regexp.MustCompile(`\bfaillock\b`),
	}
)

func userDetectors() []Detector {
	return []Detector{
		patternDetector("account-tool", CategoryUserManagement, accountTools),
		patternDetector("account-file-write", CategoryUserManagement, accountFileWrites...),
		patternDetector("auth-config", CategoryUserManagement, authConfig...),
	}
}
