package mailer

import "fmt"

// ApprovalMessage возвращает тему и тело письма об одобрении заявки.
func ApprovalMessage(name string) (string, string) {
	subject := "Welcome to MDPU — your application is approved"
	html := fmt.Sprintf(
		`<p>Dear %s,</p>
<p>Your membership application has been approved. Welcome to the Mathamba Descendants Progressive Union!</p>
<p>You can now sign in to the members area and take part in union activities.</p>
<p>MDPU Secretariat</p>`,
		name,
	)
	return subject, html
}

// RejectionMessage возвращает тему и тело письма об отклонении заявки.
func RejectionMessage(name string) (string, string) {
	subject := "MDPU membership application update"
	html := fmt.Sprintf(
		`<p>Dear %s,</p>
<p>Thank you for your interest in the union. After review, your membership application was not approved at this time.</p>
<p>You are welcome to reach out to the secretariat for details or to reapply later.</p>
<p>MDPU Secretariat</p>`,
		name,
	)
	return subject, html
}

// LeadershipMessage возвращает тему и тело уведомления о назначении на должность.
func LeadershipMessage(name, position, assignedBy string) (string, string) {
	subject := fmt.Sprintf("MDPU leadership appointment: %s", position)
	html := fmt.Sprintf(
		`<p>Dear %s,</p>
<p>You have been appointed to the position of <b>%s</b> by %s.</p>
<p>Please contact the secretariat for the handover details.</p>
<p>MDPU Secretariat</p>`,
		name, position, assignedBy,
	)
	return subject, html
}
