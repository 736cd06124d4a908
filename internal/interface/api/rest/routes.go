package rest

const (
	// api
	RouteApiV1 = "/api/v1"

	// attachments by parent
	RouteIncidentAttachments = RouteApiV1 + "/incidents/:parent_id/attachments"
	RouteCommentAttachments  = RouteApiV1 + "/comments/:parent_id/attachments"

	RouteAttachments          = RouteApiV1 + "/attachments"
	RouteAttachment           = RouteAttachments + "/:attachment_id"
	RouteAttachmentComplete   = RouteAttachment + "/complete"
	RouteAttachmentStatus     = RouteAttachment + "/status"
	RouteAttachmentContent    = RouteAttachment + "/content"
	RouteAttachmentSignedURL  = RouteAttachment + "/signed-url"
	RouteAttachmentDownload   = RouteAttachments + "/download"
	RouteAttachmentConstraint = RouteAttachments + "/constraints"

	// loopback storage, development only
	RouteLoopbackUpload = RouteApiV1 + "/storage/loopback/*path"

	// ops
	RouteHealth  = RouteApiV1 + "/healthz"
	RouteMetrics = RouteApiV1 + "/metrics"
)
