package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/markbunyevacz/HR-AI-website/internal/model"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRegex = regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	dateRegex  = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2}`)
	// Two consecutive capitalized words. Known to over-match section headers
	// like "Work Experience"; kept as-is on purpose.
	nameRegex     = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	keywordRegex  = regexp.MustCompile(`\b[a-z]{4,}\b`)
)

// skillKeywords is the fixed reference vocabulary for skill matching.
var skillKeywords = []string{
	"JavaScript", "Python", "Java", "C++", "C#", "PHP", "Ruby", "Go", "Rust",
	"React", "Angular", "Vue.js", "Node.js", "Express", "Django", "Flask",
	"Spring", "Laravel", "SQL", "MySQL", "PostgreSQL", "MongoDB", "Redis",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Jenkins", "Git", "GitHub",
	"Agile", "Scrum", "Kanban", "JIRA", "Confluence", "Slack", "Teams",
	"DevOps", "CI/CD", "Machine Learning", "AI", "Data Science", "Analytics",
	"Project Management", "Product Management", "Business Analysis",
	"Leadership", "Team Management", "Communication", "Problem Solving",
	"HTML", "CSS", "SASS", "LESS", "Bootstrap", "Material-UI", "Tailwind",
	"TypeScript", "GraphQL", "REST", "API", "Microservices", "Serverless",
	"Linux", "Windows", "macOS", "Ubuntu", "CentOS", "Debian", "Bash",
	"PowerShell", "Active Directory", "Office 365", "SharePoint",
	"Salesforce", "SAP", "Oracle", "Tableau", "Power BI", "Excel",
	"Word", "PowerPoint", "Outlook", "Visio", "Adobe Creative Suite",
	"Photoshop", "Illustrator", "InDesign", "Figma", "Sketch", "XD",
	"SEO", "SEM", "Google Ads", "Facebook Ads", "LinkedIn Marketing",
	"Content Marketing", "Social Media", "Email Marketing", "CRM",
	"Sales", "Marketing", "Customer Service", "Support", "Help Desk",
	"IT Support", "Network Administration", "Cybersecurity", "Penetration Testing",
	"Ethical Hacking", "Security+", "CISSP", "CEH", "CompTIA",
	"PMP", "PRINCE2", "Six Sigma", "Lean", "Kaizen", "ISO 9001",
	"Quality Assurance", "Testing", "QA", "Manual Testing", "Automation",
	"Selenium", "Cypress", "Jest", "Mocha", "Chai", "JUnit", "TestNG",
	"Performance Testing", "Load Testing", "Stress Testing", "Regression Testing",
}

var educationKeywords = []string{
	"bachelor", "master", "phd", "doctorate", "degree", "university", "college",
	"b.a.", "b.s.", "m.a.", "m.s.", "m.b.a.", "ph.d.", "associate",
	"certificate", "diploma", "certification",
}

var experienceKeywords = []string{
	"years", "experience", "worked", "employed", "position", "role",
	"manager", "director", "senior", "junior", "lead", "principal",
	"intern", "contractor", "consultant", "freelance",
}

var keywordStopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "they": true,
	"have": true, "been": true, "will": true, "said": true,
}

// ParseResumeText derives structured fields from raw recognized text. It is
// pure and total: any input, including the empty string, yields a fully
// populated result without error.
func ParseResumeText(text string) *model.ExtractedData {
	structured := model.NewExtractedData()
	if text == "" {
		return structured
	}

	structured.Emails = dedupe(emailRegex.FindAllString(text, -1))
	structured.Phones = dedupe(phoneRegex.FindAllString(text, -1))
	structured.Dates = dedupe(dateRegex.FindAllString(text, -1))
	structured.Names = dedupe(nameRegex.FindAllString(text, -1))

	textLower := strings.ToLower(text)
	structured.Skills = matchVocabulary(textLower, skillKeywords)
	structured.Education = matchVocabulary(textLower, educationKeywords)
	structured.Experience = matchVocabulary(textLower, experienceKeywords)

	structured.Summary = buildSummary(text)
	structured.Keywords = rankKeywords(textLower)

	return structured
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(matches []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// matchVocabulary returns vocabulary entries found as case-insensitive
// substrings, ordered by their first occurrence in the text. Whole-keyword
// substring matching means overlapping variants may both fire.
func matchVocabulary(textLower string, vocab []string) []string {
	type hit struct {
		keyword string
		pos     int
	}
	var hits []hit
	for _, kw := range vocab {
		if pos := strings.Index(textLower, strings.ToLower(kw)); pos >= 0 {
			hits = append(hits, hit{keyword: kw, pos: pos})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.keyword)
	}
	return out
}

// buildSummary concatenates the first 3 sentences longer than 20 characters
// after trimming. Returns "" when none qualify.
func buildSummary(text string) string {
	var picked []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if len(strings.TrimSpace(s)) > 20 {
			picked = append(picked, s)
			if len(picked) == 3 {
				break
			}
		}
	}
	if len(picked) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(picked, ". ")) + "."
}

// rankKeywords returns the top 20 most frequent lowercase words of at least
// 4 letters, stop-words excluded, ties broken by first-seen order.
func rankKeywords(textLower string) []string {
	words := keywordRegex.FindAllString(textLower, -1)
	freq := make(map[string]int)
	var firstSeen []string
	for _, w := range words {
		if keywordStopWords[w] {
			continue
		}
		if freq[w] == 0 {
			firstSeen = append(firstSeen, w)
		}
		freq[w]++
	}
	sort.SliceStable(firstSeen, func(i, j int) bool {
		return freq[firstSeen[i]] > freq[firstSeen[j]]
	})
	if len(firstSeen) > 20 {
		firstSeen = firstSeen[:20]
	}
	out := []string{}
	return append(out, firstSeen...)
}
