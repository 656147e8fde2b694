package policy

import (
	"regexp"
	"strings"
)

var (
	powerControl = []*regexp.Regexp{
		commandRe(`reboot`, `halt`, `poweroff`, `shutdown`, `kexec`),
		commandRe(`(?:tel)?init\s+[06sS]`),
		regexp.MustCompile(`\bsystemctl\s+(?:-\S+\s+)*(?:reboot|poweroff|halt|kexec|suspend|hibernate|rescue|emergency)\b`),
	}

	serviceControl = []*regexp.Regexp{
		regexp.MustCompile(`\bsystemctl\s+(?:-\S+\s+)*(?:start|stop|restart|reload|try-restart|reload-or-restart|condrestart|enable|disable|reenable|mask|unmask|kill|isolate|set-default|daemon-reload|daemon-reexec|edit|link|revert|preset)\b`),
		regexp.MustCompile(`\bservice\s+\S+\s+(?:start|stop|restart|reload|force-reload)\b`),
		regexp.MustCompile(`/etc/init\.d/\S+\s+(?:start|stop|restart|reload|force-reload)\b`),
		regexp.MustCompile(`\blaunchctl\s+(?:load|unload|bootstrap|bootout|enable|disable|kickstart|kill|remove|start|stop|submit)\b`),
		regexp.MustCompile(`\bsv\s+(?:up|down|restart|stop|start|kill|exit)\b`),
		regexp.MustCompile(`\brc-service\s+\S+\s+(?:start|stop|restart)\b`),
		commandRe(`chkconfig`, `update-rc\.d`, `rc-update`, `s6-svc`, `s6-rc`),
	}

	scheduling = []*regexp.Regexp{
		commandRe(`at\s+(?:-\S+\s+)*(?:now|noon|midnight|teatime|tomorrow|\d)`, `atrm`, `batch`),
		regexp.MustCompile(`>\s*/etc/(?:cron|anacrontab)`),
		regexp.MustCompile(`\btee\s+(?:-\S+\s+)*/etc/(?:cron|anacrontab)`),
		regexp.MustCompile(`\b(?:cp|mv|install|ln)\s+.*\s/etc/cron`),
		regexp.MustCompile(`/var/spool/cron`),
		regexp.MustCompile(`\bsystemd-run\b.*--on-`),
	}

	mountControl = []*regexp.Regexp{
		commandRe(`mount\.\w+`, `umount\s+\S+`, `losetup\s+(?:-[dDfa]|/dev)`, `swapoff\s+\S+`),
		regexp.MustCompile(`>\s*/etc/fstab\b`),
		regexp.MustCompile(`\btee\s+(?:-\S+\s+)*/etc/fstab\b`),
		regexp.MustCompile(`\bsed\s+.*-i.*/etc/fstab\b`),
	}

	kernelControl = []*regexp.Regexp{
		commandRe(`insmod`, `rmmod`, `modprobe`, `depmod`, `kextload`, `kextunload`),
		regexp.MustCompile(`\bsysctl\s+(?:-\S+\s+)*(?:-w\b|\S+=\S*)`),
		regexp.MustCompile(`>\s*/proc/sys/`),
		regexp.MustCompile(`\btee\s+(?:-\S+\s+)*/proc/sys/`),
	}

	firewallPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bufw\s+(?:--\S+\s+)*(?:enable|disable|allow|deny|reject|limit|delete|insert|route|prepend|reset|default|reload)\b`),
		regexp.MustCompile(`\bnft\s+(?:-\S+\s+)*(?:add|delete|flush|insert|replace|create|destroy|reset|-f)\b`),
		regexp.MustCompile(`\bipfw\s+(?:-\S+\s+)*(?:add|delete|flush)\b`),
		regexp.MustCompile(`\b(?:iptables|ip6tables)-restore\b`),
	}

	// iptables options that change rules. Case matters: -L and -n only list.
	iptablesWriteFlags = wordSet(
		"-A", "-I", "-D", "-R", "-F", "-X", "-P", "-N", "-Z", "-E",
		"--append", "--insert", "--delete", "--replace", "--flush", "--delete-chain",
		"--policy", "--new-chain", "--zero", "--rename-chain",
	)

	firewallCmdReadOnly = []string{"--state", "--list", "--get", "--query", "--info", "--version", "--help", "--zone", "--permanent"}
)

func controlDetectors() []Detector {
	return []Detector{
		patternDetector("power-control", CategorySystemControl, powerControl...),
		patternDetector("service-control", CategorySystemControl, serviceControl...),
		patternDetector("task-scheduling", CategorySystemControl, scheduling...),
		bashDetector("crontab-write", CategorySystemControl, isCrontabWrite),
		patternDetector("firewall-change", CategorySystemControl, firewallPatterns...),
		bashDetector("firewall-rule-change", CategorySystemControl, isFirewallRuleChange),
		patternDetector("mount-control", CategorySystemControl, mountControl...),
		bashDetector("mount-change", CategorySystemControl, isMountChange),
		patternDetector("kernel-control", CategorySystemControl, kernelControl...),
	}
}

// isCrontabWrite flags every crontab use except listing.
func isCrontabWrite(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "crontab" {
			return false
		}
		var rest []string
		for i := 0; i < len(c.args); i++ {
			if c.args[i] == "-u" {
				i++
				continue
			}
			rest = append(rest, c.args[i])
		}
		return !(len(rest) == 1 && rest[0] == "-l")
	})
}

func isFirewallRuleChange(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		switch c.name {
		case "iptables", "ip6tables", "iptables-legacy", "iptables-nft":
			for _, a := range c.args {
				if iptablesWriteFlags[a] {
					return true
				}
			}
		case "firewall-cmd":
			for _, a := range c.args {
				if !strings.HasPrefix(a, "--") {
					continue
				}
				readOnly := false
				for _, ro := range firewallCmdReadOnly {
					if strings.HasPrefix(a, ro) {
						readOnly = true
						break
					}
				}
				if !readOnly {
					return true
				}
			}
		case "pfctl":
			for _, a := range c.args {
				if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.ContainsAny(a[1:], "edfFAR") {
					return true
				}
			}
		}
		return false
	})
}

// isMountChange flags mount and swapon with anything beyond listing flags.
func isMountChange(l *commandLine) bool {
	listing := wordSet("-l", "-v", "--show", "-s", "--summary", "-h", "--help", "-V", "--version")
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "mount" && c.name != "swapon" {
			return false
		}
		for _, a := range c.args {
			if !listing[a] {
				return true
			}
		}
		return false
	})
}
