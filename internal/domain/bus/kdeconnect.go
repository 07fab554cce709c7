package bus

import "strings"

// Well-known KDE Connect names.
const (
	Destination = "org.kde.kdeconnect"
	BasePath    = "/modules/kdeconnect"
	DevicesPath = BasePath + "/devices"

	InterfaceDaemon        = "org.kde.kdeconnect.daemon"
	InterfaceDevice        = "org.kde.kdeconnect.device"
	InterfaceConversations = "org.kde.kdeconnect.device.conversations"
	InterfaceSMS           = "org.kde.kdeconnect.device.sms"
	InterfaceTelephony     = "org.kde.kdeconnect.device.telephony"
	InterfaceShare         = "org.kde.kdeconnect.device.share"
	InterfaceBattery       = "org.kde.kdeconnect.device.battery"
	InterfaceNotifications = "org.kde.kdeconnect.device.notifications"
	InterfaceProperties    = "org.freedesktop.DBus.Properties"
)

// Conversation signal members.
const (
	MemberConversationCreated = "conversationCreated"
	MemberConversationUpdated = "conversationUpdated"
	MemberConversationLoaded  = "conversationLoaded"
)

// DevicePath returns the object path of a device.
func DevicePath(deviceID string) string {
	return DevicesPath + "/" + deviceID
}

// PluginPath returns the object path of a device plugin, e.g. "sms".
func PluginPath(deviceID, plugin string) string {
	return DevicePath(deviceID) + "/" + plugin
}

// SmsPath returns the SMS plugin path of a device.
func SmsPath(deviceID string) string {
	return PluginPath(deviceID, "sms")
}

// DeviceIDFromPath extracts the device id from a device or device plugin path.
func DeviceIDFromPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, DevicesPath+"/")
	if !ok || rest == "" {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return "", false
	}
	return id, true
}

// PathBelongsTo reports whether path is the device path or one of its plugins.
// The comparison is by whole path segment so "abc" never matches "abcd".
func PathBelongsTo(path, deviceID string) bool {
	id, ok := DeviceIDFromPath(path)
	return ok && id == deviceID
}
