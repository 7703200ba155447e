// Package payment holds the provider-neutral payment status vocabulary shared
// by the gateway client and the webhook reconciler.
package payment

type Status string

const (
	StatusPending           Status = "pending"
	StatusWaitingForCapture Status = "waiting_for_capture"
	StatusSucceeded         Status = "succeeded"
	StatusCanceled          Status = "canceled"
)
