package webhook

var (
	IsPublicAddr = isPublicAddr
	DialControl  = dialControl
)
