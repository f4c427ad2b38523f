//go:build !whisper

package doctor

func checkWhisperBuild() Result {
	return Result{Name: "whisper", Pass: false, Detail: "built without -tags whisper; transcription disabled"}
}
