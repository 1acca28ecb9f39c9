package detection

import "strings"

// COCOClasses are the 80 COCO labels indexed from zero, as emitted by mmdeploy
// and YOLO-style heads.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// COCOBackgroundClasses prepends a background label for Faster R-CNN heads
// whose class zero is background.
var COCOBackgroundClasses = append([]string{"__background__"}, COCOClasses...)

// ClassSet resolves a built-in label set by name.
//
// Arguments:
//   - name: coco or coco_background, case insensitive.
//
// Returns:
//   - []string: A copy of the labels.
//   - bool: false for unknown names.
func ClassSet(name string) ([]string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "coco":
		return append([]string(nil), COCOClasses...), true
	case "coco_background":
		return append([]string(nil), COCOBackgroundClasses...), true
	default:
		return nil, false
	}
}
