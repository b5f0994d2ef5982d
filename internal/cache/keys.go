package cache

// KeyMedia is the key of the media info of one channel message.
func KeyMedia(channelID int64, messageID int) string {
	return Key("media", channelID, messageID)
}
