package policy

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/gzhole/toolgate/internal/shellwords"
)

var (
	remoteShells = commandRe(
		`ssh`, `scp`, `sftp`, `rsync`, `ssh-copy-id`, `sshpass`, `mosh`,
		`telnet`, `ftp`, `tftp`, `lftp`, `rlogin`, `rsh`, `rexec`, `rcp`,
	)

	relayTools = []*regexp.Regexp{
		commandRe(`socat`, `nc`, `netcat`, `ncat`, `cryptcat`),
		regexp.MustCompile(`\bopenssl\s+s_client\b`),
		regexp.MustCompile(`\bssh-keygen\b.*\s-f\s*/`),
	}

	networkScanners = commandRe(
		`nmap`, `masscan`, `zmap`, `hping\d*`, `tcpdump`, `wireshark`, `tshark`, `ettercap`, `arpspoof`,
	)

	ipv4Literal = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){3}$`)

	suspiciousTLDs = wordSet("tk", "ml", "ga", "cf", "gq", "pw", "su", "onion")

	pasteSites = []string{
		"pastebin.com", "paste.ee", "hastebin.com", "ghostbin.co", "termbin.com",
		"transfer.sh", "0x0.st", "ix.io", "dpaste.org", "dpaste.com", "pastebin",
	}

	urlShorteners = wordSet(
		"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "ow.ly", "cutt.ly",
		"rebrand.ly", "shorturl.at", "tiny.cc",
	)

	// Options of curl and wget whose value is not a URL.
	fetchValueFlags = wordSet(
		"-o", "-O", "--output", "-H", "--header", "-d", "--data", "--data-raw", "--data-binary",
		"-u", "--user", "-X", "--request", "-A", "--user-agent", "-e", "--referer", "-T",
		"--upload-file", "-F", "--form", "-w", "--write-out", "-b", "--cookie", "-c",
		"--cookie-jar", "-K", "--config", "-r", "--range", "-m", "--max-time", "-P",
		"--directory-prefix", "--header=", "-U", "--output-document", "-x", "--proxy",
	)
)

func networkDetectors() []Detector {
	return []Detector{
		patternDetector("remote-shell", CategoryNetworkOperation, remoteShells),
		patternDetector("network-relay", CategoryNetworkOperation, relayTools...),
		patternDetector("network-scanner", CategoryNetworkOperation, networkScanners),
		bashDetector("suspicious-download", CategoryNetworkOperation, isSuspiciousFetch),
	}
}

// isSuspiciousFetch flags curl or wget aimed at a literal IP address, a
// throwaway TLD, a paste site or a URL shortener. Named hosts pass.
func isSuspiciousFetch(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		for i, w := range c.words {
			base := strings.ToLower(shellwords.Base(w))
			if base != "curl" && base != "wget" {
				continue
			}
			args := c.words[i+1:]
			for j, a := range args {
				if strings.HasPrefix(a, "-") {
					continue
				}
				if j > 0 && fetchValueFlags[args[j-1]] {
					continue
				}
				if host := hostOf(a); host != "" && suspiciousHost(host) {
					return true
				}
			}
		}
		return false
	})
}

// hostOf extracts the host from a URL or a scheme-less "host/path" argument.
func hostOf(arg string) string {
	arg = strings.Trim(arg, `"'`)
	if !strings.Contains(arg, "://") {
		arg = "http://" + arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
}

func suspiciousHost(host string) bool {
	if ipv4Literal.MatchString(host) || net.ParseIP(host) != nil {
		return true
	}
	if urlShorteners[host] {
		return true
	}
	for _, site := range pasteSites {
		if host == site || strings.HasSuffix(host, "."+site) || strings.Contains(host, "pastebin") {
			return true
		}
	}
	if dot := strings.LastIndexByte(host, '.'); dot >= 0 {
		return suspiciousTLDs[host[dot+1:]]
	}
	return false
}
