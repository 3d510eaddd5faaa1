package notify

import "fmt"

// Notification templates. The template name travels with the notification so
// clients can render localized copy; Body is the server-side fallback text.
const (
	TemplateJobAcceptedClient  = "job_accepted_client"
	TemplateJobAcceptedCleaner = "job_accepted_cleaner"
	TemplateJobCancelled       = "job_cancelled"
	TemplatePaymentReceived    = "payment_received"
)

func jobAcceptedClientBody(jobID int64) string {
	return fmt.Sprintf("Your cleaning job #%d was accepted. A chat with your cleaner is now open.", jobID)
}

func jobAcceptedCleanerBody(jobID int64) string {
	return fmt.Sprintf("You accepted job #%d. A chat with the client is now open.", jobID)
}

func jobCancelledBody(jobID int64) string {
	return fmt.Sprintf("Job #%d was cancelled.", jobID)
}

func paymentReceivedBody(jobID, amountCents int64) string {
	return fmt.Sprintf("Payment of $%d.%02d for job #%d has settled.", amountCents/100, amountCents%100, jobID)
}
