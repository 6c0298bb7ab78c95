package tasks

import "natours_echo/internal/services"

// DefineTasks registers all available tasks. mailer may be nil in
// processes that only enqueue.
func DefineTasks(mailer services.Mailer) {
	SendEmailTask.Mailer = mailer
	RegisterHandler(SendEmailTask.TaskID(), SendEmailTask.HandleExecution)

	RegisterHandler(ReconcileRatingsTask.TaskID(), ReconcileRatingsTask.HandleExecution)

	RegisterHandler(ExpirePaymentSessionsTask.TaskID(), ExpirePaymentSessionsTask.HandleExecution)
}
