package policy

import "regexp"

var (
	mailClients = commandRe(
		`sendmail`, `mail`, `mailx`, `mutt`, `neomutt`, `msmtp`, `ssmtp`, `exim4?`, `postfix`,
		`postqueue`, `postsuper`, `postdrop`, `mailq`, `swaks`, `sendemail`, `mpack`,
	)

	smtpPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:telnet|nc|ncat|netcat|socat)\b.*[\s:](?:25|465|587|2525)\b`),
		regexp.MustCompile(`\bopenssl\s+s_client\b.*:(?:25|465|587|2525)\b`),
		regexp.MustCompile(`\b(?:python[23]?|perl|ruby|node|php|go)\b.*(?:\bsmtplib\b|net::smtp|net/smtp|\bnodemailer\b|\bphpmailer\b|smtp\.sendmail|\bjavax\.mail\b)`),
		regexp.MustCompile(`\bphp\b.*\bmail\s*\(`),
		regexp.MustCompile(`\bcurl\b.*\bsmtps?://`),
		regexp.MustCompile(`\bsend-mailmessage\b`),
	}
)

func emailDetectors() []Detector {
	return []Detector{
		patternDetector("mail-client", CategoryEmailOperation, mailClients),
		patternDetector("smtp-connection", CategoryEmailOperation, smtpPatterns...),
	}
}
