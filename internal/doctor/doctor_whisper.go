//go:build whisper

package doctor

func checkWhisperBuild() Result {
	return Result{Name: "whisper", Pass: true, Detail: "bindings compiled in"}
}
