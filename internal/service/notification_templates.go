package service

const applicantConfirmationTemplate = `{{define "applicant_confirmation_subject"}}We received your trainer application{{end}}
{{define "applicant_confirmation_body"}}Hello {{.App.FirstName}},

Thank you for applying to become a LearnHub trainer. Your application is now
pending review. Here is a summary of what you sent us:

  Name:               {{.App.FullName}}
  Email:              {{.App.Email}}
  Phone:              {{.App.Phone}}
  Current position:   {{.App.CurrentPosition}}{{with .App.Company}} at {{.}}{{end}}
  Primary expertise:  {{.App.PrimaryExpertise}} ({{.App.YearsExperience}} years)
{{- if .App.SecondaryExpertise}}
  Also experienced in: {{join .App.SecondaryExpertise ", "}}
{{- end}}
  Preferred format:   {{.App.PreferredFormat}}
  Desired courses:    {{.App.DesiredCourses}}
  Attachments:        {{.AttachmentCount}} file(s)

Reference: {{.App.ID}}

We will contact you as soon as a coordinator has looked at your application.

The LearnHub team
{{end}}`

const staffAlertTemplate = `{{define "staff_alert_subject"}}New trainer application: {{.App.FullName}} ({{.App.PrimaryExpertise}}){{end}}
{{define "staff_alert_body"}}A new trainer application was submitted on {{.SubmittedAt}}.

Applicant
  Name:              {{.App.FullName}}
  Email:             {{.App.Email}}
  Phone:             {{.App.Phone}}
  Position:          {{.App.CurrentPosition}}{{with .App.Company}} at {{.}}{{end}}

Expertise
  Primary:           {{.App.PrimaryExpertise}}
  Years:             {{.App.YearsExperience}}
  Secondary:         {{if .App.SecondaryExpertise}}{{join .App.SecondaryExpertise ", "}}{{else}}none{{end}}

Professional bio
{{.App.ProfessionalBio}}

Teaching experience
{{.App.TeachingExperience}}

Preferred format:    {{.App.PreferredFormat}}
Desired courses:     {{.App.DesiredCourses}}

Motivation
{{.App.Motivation}}

Attachments
  Resume:            {{if .App.ResumeFile}}yes ({{.App.ResumeFile.OriginalName}}){{else}}no{{end}}
  Certifications:    {{len .App.CertificationFiles}}
  Portfolio items:   {{len .App.PortfolioFiles}}

Application id: {{.App.ID}}
{{end}}`

const statusChangedTemplate = `{{define "status_changed_subject"}}Your trainer application is now {{statusLabel .To}}{{end}}
{{define "status_changed_body"}}Hello {{.App.FirstName}},

The status of your LearnHub trainer application changed from
{{statusLabel .From}} to {{statusLabel .To}}.
{{- if eq (print .To) "interview_scheduled"}}

A coordinator will reach out shortly to agree on an interview slot.
{{- else if eq (print .To) "approved"}}

Congratulations! Welcome to the LearnHub trainer community.
{{- else if eq (print .To) "rejected"}}

Thank you for your interest. We are unable to move forward at this time.
{{- end}}

Reference: {{.App.ID}}

The LearnHub team
{{end}}`

const backlogDigestTemplate = `{{define "backlog_digest_subject"}}Trainer applications awaiting review: {{.Open}}{{end}}
{{define "backlog_digest_body"}}Review backlog as of {{.GeneratedAt}}:
{{range .Counts}}
  {{printf "%-22s" (statusLabel .Status)}} {{.Count}}
{{- end}}

Open applications: {{.Open}}
{{end}}`
