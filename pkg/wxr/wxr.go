package wxr

import (
	"encoding/xml"
	"time"
)

// wxrVersion is the schema revision the WordPress importer reads
const wxrVersion = "1.2"

// Namespace declarations the importer expects on the rss envelope
const (
	excerptNamespace = "http://wordpress.org/export/1.2/excerpt/"
	contentNamespace = "http://purl.org/rss/1.0/modules/content/"
	wfwNamespace     = "http://wellformedweb.org/CommentAPI/"
	dcNamespace      = "http://purl.org/dc/elements/1.1/"
	wpNamespace      = "http://wordpress.org/export/1.2/"
)

// postDateLayout is the wp:post_date timestamp format
const postDateLayout = "2006-01-02 15:04:05"

// CData wraps element text the importer must receive byte for byte
type CData struct {
	Text string `xml:",cdata"`
}

// GUID is the importer's duplicate detection key. Slugs are stable
// across runs, so the slug rides here with isPermaLink off.
type GUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Item is a single exported post
type Item struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	PubDate       string `xml:"pubDate"`
	Creator       CData  `xml:"dc:creator"`
	GUID          GUID   `xml:"guid"`
	Description   string `xml:"description"`
	Content       CData  `xml:"content:encoded"`
	Excerpt       CData  `xml:"excerpt:encoded"`
	PostID        int    `xml:"wp:post_id"`
	PostDate      CData  `xml:"wp:post_date"`
	PostDateGMT   CData  `xml:"wp:post_date_gmt"`
	CommentStatus CData  `xml:"wp:comment_status"`
	PingStatus    CData  `xml:"wp:ping_status"`
	PostName      CData  `xml:"wp:post_name"`
	Status        CData  `xml:"wp:status"`
	PostParent    int    `xml:"wp:post_parent"`
	MenuOrder     int    `xml:"wp:menu_order"`
	PostType      CData  `xml:"wp:post_type"`
	Password      CData  `xml:"wp:post_password"`
	IsSticky      int    `xml:"wp:is_sticky"`
}

// Channel carries the blog header repeated at the top of every bundle
type Channel struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Language    string `xml:"language"`
	WXRVersion  string `xml:"wp:wxr_version"`
	Items       []Item `xml:"item"`
}

// Document is the root element of one import bundle
type Document struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	ExcerptNS string   `xml:"xmlns:excerpt,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	WfwNS     string   `xml:"xmlns:wfw,attr"`
	DcNS      string   `xml:"xmlns:dc,attr"`
	WpNS      string   `xml:"xmlns:wp,attr"`
	Channel   Channel  `xml:"channel"`
}

// NewDocument assembles one bundle around the given items. pubDate
// stamps the channel header; items keep whatever dates they carry.
func NewDocument(title, link, description string, pubDate time.Time, items []Item) *Document {
	return &Document{
		Version:   "2.0",
		ExcerptNS: excerptNamespace,
		ContentNS: contentNamespace,
		WfwNS:     wfwNamespace,
		DcNS:      dcNamespace,
		WpNS:      wpNamespace,
		Channel: Channel{
			Title:       title,
			Link:        link,
			Description: description,
			PubDate:     rfcDate(pubDate),
			Language:    "en-US",
			WXRVersion:  wxrVersion,
			Items:       items,
		},
	}
}

// NewItem fills in the fixed post fields WordPress expects: published
// status, closed comments and pings, an empty excerpt. The slug doubles
// as post name and guid. PostID is assigned later, once the full post
// order is known.
func NewItem(title, link, author, slug, content string, published time.Time) Item {
	stamp := published.UTC().Format(postDateLayout)
	return Item{
		Title:         title,
		Link:          link,
		PubDate:       rfcDate(published),
		Creator:       CData{Text: author},
		GUID:          GUID{IsPermaLink: "false", Value: slug},
		Content:       CData{Text: content},
		PostDate:      CData{Text: stamp},
		PostDateGMT:   CData{Text: stamp},
		CommentStatus: CData{Text: "closed"},
		PingStatus:    CData{Text: "closed"},
		PostName:      CData{Text: slug},
		Status:        CData{Text: "publish"},
		PostType:      CData{Text: "post"},
	}
}

// rfcDate formats RSS pubDate values, always against UTC so the zone
// suffix reads +0000
func rfcDate(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

// Marshal renders one bundle with the XML declaration and fixed
// four-space indentation. Identical input yields identical bytes.
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
