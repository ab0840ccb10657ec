package store

// Install-scoped keys.
const (
	KeyServerAddress        = "saved_ip"
	KeyRelayToken           = "fcm_token"
	KeyUserCredentials      = "user_credentials"
	KeyPendingToken         = "pending_fcm_token"
	KeyNotificationsEnabled = "saved_need_notification_state"
	KeyPairedCameras        = "paired_cameras"
)

// LegacyInvalid is the placeholder older installs wrote in place of a
// missing value. It is treated the same as an absent key.
const LegacyInvalid = "Error"

const firstTimeDonePrefix = "first_time_connection_done_"

// FirstTimeDoneKey returns the key of the first-time flag for a camera.
func FirstTimeDoneKey(camera string) string {
	return firstTimeDonePrefix + camera
}
