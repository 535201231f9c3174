package common

const KindDriveFile = "drive_file"
const KindDriveFolder = "drive_folder"
const KindGoogleDoc = "google_doc"
const KindMegaFile = "mega_file"
const KindMegaFolder = "mega_folder"

var AllKinds = []string{KindDriveFile, KindDriveFolder, KindGoogleDoc, KindMegaFile, KindMegaFolder}

// IsMegaKind reports whether the kind came from the Mega.nz downloader. Mega has
// no ownership concept, which changes how creator metadata is synthesized.
func IsMegaKind(kind string) bool {
	return kind == KindMegaFile || kind == KindMegaFolder
}
