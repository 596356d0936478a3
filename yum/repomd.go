package yum

import (
	"encoding/xml"
	"io"

	"emperror.dev/errors"
)

const (
	repomdNamespace    = "http://linux.duke.edu/metadata/repo"
	repomdRPMNamespace = "http://linux.duke.edu/metadata/rpm"
)

// RepoMetadata is the repodata/repomd.xml document of a repository.
type RepoMetadata struct {
	XMLName      xml.Name       `xml:"repomd"`
	XMLNamespace string         `xml:"xmlns,attr"`
	RPMNamespace string         `xml:"xmlns:rpm,attr"`
	Revision     int            `xml:"revision"`
	Databases    []RepoDatabase `xml:"data"`
}

// RepoDatabase describes one database file of a repository.
type RepoDatabase struct {
	Type            string               `xml:"type,attr"`
	Location        RepoDatabaseLocation `xml:"location"`
	Timestamp       int64                `xml:"timestamp"`
	Size            int                  `xml:"size"`
	OpenSize        int                  `xml:"open-size"`
	Checksum        RepoDatabaseChecksum `xml:"checksum"`
	OpenChecksum    RepoDatabaseChecksum `xml:"open-checksum"`
	DatabaseVersion int                  `xml:"database_version"`
}

// RepoDatabaseLocation is the location of a database relative to the
// repository base.
type RepoDatabaseLocation struct {
	Href string `xml:"href,attr"`
}

// ReadRepoMetadata decodes a repomd.xml document.
func ReadRepoMetadata(r io.Reader) (*RepoMetadata, error) {
	md := &RepoMetadata{}
	if err := xml.NewDecoder(r).Decode(md); err != nil {
		return nil, errors.WrapIf(err, "decode repomd.xml")
	}
	return md, nil
}

// Write encodes the document with an XML declaration.
func (c *RepoMetadata) Write(w io.Writer) error {
	if c.XMLNamespace == "" {
		c.XMLNamespace = repomdNamespace
	}
	if c.RPMNamespace == "" {
		c.RPMNamespace = repomdRPMNamespace
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return errors.WithStack(err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(c); err != nil {
		return errors.WrapIf(err, "encode repomd.xml")
	}
	_, err := io.WriteString(w, "\n")
	return errors.WithStack(err)
}

// Database returns the database of the given type, or nil.
func (c *RepoMetadata) Database(typ string) *RepoDatabase {
	for i := range c.Databases {
		if c.Databases[i].Type == typ {
			return &c.Databases[i]
		}
	}
	return nil
}
