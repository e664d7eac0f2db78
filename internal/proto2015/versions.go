package proto2015

import "strings"

// Version files served over FTP by the robot controller.
const (
	libVersionFile = "/tmp/frc_versions/FRC_Lib_Version.ini"
	pcmVersionFile = "/tmp/frc_versions/PCM-0-versions.ini"
	pdpVersionFile = "/tmp/frc_versions/PDP-0-versions.ini"
)

// versionKey precedes the version value in the PCM/PDP files.
const versionKey = "currentVersion"

// downloadRobotInformation retrieves the three firmware version files
// from the robot. Called once per acquisition.
func (p *Protocol) downloadRobotInformation() {
	if p.fetcher == nil {
		return
	}
	host := "ftp://" + p.RobotAddress()
	p.fetcher.Fetch(p.ctx, host+libVersionFile, p.onDownloadFinished)
	p.fetcher.Fetch(p.ctx, host+pcmVersionFile, p.onDownloadFinished)
	p.fetcher.Fetch(p.ctx, host+pdpVersionFile, p.onDownloadFinished)
}

// onDownloadFinished routes a retrieved file body to the matching
// version callback. Empty bodies are ignored so the last-known version
// survives a failed retrieval.
func (p *Protocol) onDownloadFinished(url string, body []byte) {
	if url == "" || len(body) == 0 {
		return
	}
	data := string(body)

	switch {
	case containsFold(url, pcmVersionFile):
		if version, ok := currentVersion(data); ok {
			p.logger.Debug("pcm version retrieved", "version", version)
			if cb := p.OnPCMVersionChanged; cb != nil {
				cb(version)
			}
		}
	case containsFold(url, pdpVersionFile):
		if version, ok := currentVersion(data); ok {
			p.logger.Debug("pdp version retrieved", "version", version)
			if cb := p.OnPDPVersionChanged; cb != nil {
				cb(version)
			}
		}
	case containsFold(url, libVersionFile):
		p.logger.Debug("lib version retrieved", "version", data)
		if cb := p.OnLibVersionChanged; cb != nil {
			cb(data)
		}
	}
}

// currentVersion extracts the four characters following
// "currentVersion" and its separator, e.g. "currentVersion=1.40"
// yields "1.40".
func currentVersion(data string) (string, bool) {
	idx := strings.Index(data, versionKey)
	if idx < 0 {
		return "", false
	}
	start := idx + len(versionKey) + 1
	if start+4 > len(data) {
		return "", false
	}
	return data[start : start+4], true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
